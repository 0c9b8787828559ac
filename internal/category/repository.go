package category

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/model"
)

type Repository interface {
	Create(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id string) (*model.Category, error)
	FindAll(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, category *model.Category) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ChildIndex lists the subcategory ids filed under a category. Deleting a
// category uses it to drop cached evaluation lists of the orphans.
type ChildIndex interface {
	SubcategoryIDs(ctx context.Context, categoryID string) ([]string, error)
}
