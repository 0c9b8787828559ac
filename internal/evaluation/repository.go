package evaluation

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/model"
)

type Repository interface {
	Create(ctx context.Context, e *model.Evaluation) error
	// FindByID joins the owning subcategory; orphans are not found.
	FindByID(ctx context.Context, id string) (*model.Evaluation, error)
	FindBySubcategory(ctx context.Context, subcategoryID string) ([]model.Evaluation, error)
	// FindVisible keeps the ids whose parent chain still exists.
	FindVisible(ctx context.Context, ids []string) ([]model.Evaluation, error)
	// Search matches title and title_ar case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]model.Evaluation, error)
	Update(ctx context.Context, e *model.Evaluation) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// SubcategoryFinder is the slice of the subcategory repository needed to check parents.
type SubcategoryFinder interface {
	FindByID(ctx context.Context, id string) (*model.Subcategory, error)
}
