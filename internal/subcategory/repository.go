package subcategory

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/model"
)

type Repository interface {
	Create(ctx context.Context, sub *model.Subcategory) error
	// FindByID joins the owning category; orphans are not found.
	FindByID(ctx context.Context, id string) (*model.Subcategory, error)
	FindByCategory(ctx context.Context, categoryID string) ([]model.Subcategory, error)
	Update(ctx context.Context, sub *model.Subcategory) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// CategoryFinder is the slice of the category repository needed to check parents.
type CategoryFinder interface {
	FindByID(ctx context.Context, id string) (*model.Category, error)
}
