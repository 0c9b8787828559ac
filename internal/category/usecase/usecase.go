package usecase

import (
	"context"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/category"
	"github.com/fekuna/evaluation-portal/internal/category/dto"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type categoryUseCase struct {
	repo     category.Repository
	children category.ChildIndex
	cache    cache.ListCache
	events   event.Publisher
	logger   logger.ZapLogger
}

func NewCategoryUseCase(repo category.Repository, children category.ChildIndex, c cache.ListCache, events event.Publisher, log logger.ZapLogger) category.UseCase {
	return &categoryUseCase{
		repo:     repo,
		children: children,
		cache:    c,
		events:   events,
		logger:   log,
	}
}

func (uc *categoryUseCase) CreateCategory(ctx context.Context, input *dto.CreateCategoryInput) (*model.Category, error) {
	now := time.Now().UTC()
	cat := &model.Category{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:        input.Name,
		NameAr:      input.NameAr,
		Description: optional(input.Description),
		ImageURL:    optional(input.ImageURL),
	}

	if err := uc.repo.Create(ctx, cat); err != nil {
		return nil, apperr.DataAccess("create category", err)
	}

	uc.afterMutation(ctx, event.New(event.TypeCreated, model.KindCategory, cat.ID))
	return cat, nil
}

func (uc *categoryUseCase) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if !model.ValidID(id) {
		return nil, apperr.NotFound(model.KindCategory.Singular(), id)
	}
	cat, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.DataAccess("get category", err)
	}
	if cat == nil {
		return nil, apperr.NotFound(model.KindCategory.Singular(), id)
	}
	return cat, nil
}

func (uc *categoryUseCase) ListCategories(ctx context.Context) ([]model.Category, error) {
	key := cache.ListKey(model.KindCategory, "")
	return cache.Load(ctx, uc.cache, uc.logger, key, func(ctx context.Context) ([]model.Category, error) {
		cats, err := uc.repo.FindAll(ctx)
		if err != nil {
			return nil, apperr.DataAccess("list categories", err)
		}
		return cats, nil
	})
}

func (uc *categoryUseCase) UpdateCategory(ctx context.Context, input *dto.UpdateCategoryInput) (*model.Category, error) {
	cat, err := uc.GetCategory(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	cat.Name = input.Name
	cat.NameAr = input.NameAr
	cat.Description = optional(input.Description)
	cat.ImageURL = optional(input.ImageURL)
	cat.UpdatedAt = time.Now().UTC()

	ok, err := uc.repo.Update(ctx, cat)
	if err != nil {
		return nil, apperr.DataAccess("update category", err)
	}
	if !ok {
		// deleted between the read and the write
		return nil, apperr.NotFound(model.KindCategory.Singular(), input.ID)
	}

	uc.afterMutation(ctx, event.New(event.TypeUpdated, model.KindCategory, cat.ID))
	return cat, nil
}

func (uc *categoryUseCase) DeleteCategory(ctx context.Context, id string) error {
	if !model.ValidID(id) {
		return apperr.NotFound(model.KindCategory.Singular(), id)
	}
	orphans, err := uc.children.SubcategoryIDs(ctx, id)
	if err != nil {
		uc.logger.Warn("failed to list subcategories of deleted category", zap.String("category_id", id), zap.Error(err))
	}

	ok, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return apperr.DataAccess("delete category", err)
	}
	if !ok {
		return apperr.NotFound(model.KindCategory.Singular(), id)
	}

	ev := event.New(event.TypeDeleted, model.KindCategory, id)
	ev.OrphanIDs = orphans
	uc.afterMutation(ctx, ev)
	return nil
}

// afterMutation must finish invalidating before the caller re-lists.
func (uc *categoryUseCase) afterMutation(ctx context.Context, ev event.CatalogChanged) {
	cache.Invalidate(ctx, uc.cache, uc.logger, ev.InvalidatedKeys()...)

	if err := uc.events.Publish(ctx, ev); err != nil {
		uc.logger.Error("failed to publish catalog event", zap.String("event_type", ev.EventType), zap.String("category_id", ev.EntityID), zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
