package subcategory

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/subcategory/dto"
)

type UseCase interface {
	CreateSubcategory(ctx context.Context, input *dto.CreateSubcategoryInput) (*model.Subcategory, error)
	GetSubcategory(ctx context.Context, id string) (*model.Subcategory, error)
	// ListSubcategories returns nil without any request when categoryID is empty.
	ListSubcategories(ctx context.Context, categoryID string) ([]model.Subcategory, error)
	UpdateSubcategory(ctx context.Context, input *dto.UpdateSubcategoryInput) (*model.Subcategory, error)
	DeleteSubcategory(ctx context.Context, id string) error
}
