package usecase

import (
	"context"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/subcategory"
	"github.com/fekuna/evaluation-portal/internal/subcategory/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type subcategoryUseCase struct {
	repo       subcategory.Repository
	categories subcategory.CategoryFinder
	cache      cache.ListCache
	events     event.Publisher
	logger     logger.ZapLogger
}

func NewSubcategoryUseCase(repo subcategory.Repository, categories subcategory.CategoryFinder, c cache.ListCache, events event.Publisher, log logger.ZapLogger) subcategory.UseCase {
	return &subcategoryUseCase{
		repo:       repo,
		categories: categories,
		cache:      c,
		events:     events,
		logger:     log,
	}
}

func (uc *subcategoryUseCase) CreateSubcategory(ctx context.Context, input *dto.CreateSubcategoryInput) (*model.Subcategory, error) {
	if err := uc.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &model.Subcategory{
		BaseModel: model.BaseModel{
			ID:        uuid.New().String(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		NameAr:      input.NameAr,
		Description: optional(input.Description),
		ImageURL:    optional(input.ImageURL),
		SortOrder:   input.SortOrder,
	}

	if err := uc.repo.Create(ctx, sub); err != nil {
		return nil, apperr.DataAccess("create subcategory", err)
	}

	uc.afterMutation(ctx, event.New(event.TypeCreated, model.KindSubcategory, sub.ID, sub.CategoryID))
	return sub, nil
}

func (uc *subcategoryUseCase) GetSubcategory(ctx context.Context, id string) (*model.Subcategory, error) {
	if !model.ValidID(id) {
		return nil, apperr.NotFound(model.KindSubcategory.Singular(), id)
	}
	sub, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.DataAccess("get subcategory", err)
	}
	if sub == nil {
		return nil, apperr.NotFound(model.KindSubcategory.Singular(), id)
	}
	return sub, nil
}

func (uc *subcategoryUseCase) ListSubcategories(ctx context.Context, categoryID string) ([]model.Subcategory, error) {
	if categoryID == "" {
		return nil, nil
	}
	if !model.ValidID(categoryID) {
		return []model.Subcategory{}, nil
	}

	key := cache.ListKey(model.KindSubcategory, categoryID)
	return cache.Load(ctx, uc.cache, uc.logger, key, func(ctx context.Context) ([]model.Subcategory, error) {
		subs, err := uc.repo.FindByCategory(ctx, categoryID)
		if err != nil {
			return nil, apperr.DataAccess("list subcategories", err)
		}
		return subs, nil
	})
}

func (uc *subcategoryUseCase) UpdateSubcategory(ctx context.Context, input *dto.UpdateSubcategoryInput) (*model.Subcategory, error) {
	sub, err := uc.GetSubcategory(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := uc.requireCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	previousParent := sub.CategoryID
	sub.CategoryID = input.CategoryID
	sub.Name = input.Name
	sub.NameAr = input.NameAr
	sub.Description = optional(input.Description)
	sub.ImageURL = optional(input.ImageURL)
	sub.SortOrder = input.SortOrder
	sub.UpdatedAt = time.Now().UTC()
	sub.Category = nil

	ok, err := uc.repo.Update(ctx, sub)
	if err != nil {
		return nil, apperr.DataAccess("update subcategory", err)
	}
	if !ok {
		return nil, apperr.NotFound(model.KindSubcategory.Singular(), input.ID)
	}

	uc.afterMutation(ctx, event.New(event.TypeUpdated, model.KindSubcategory, sub.ID, previousParent, sub.CategoryID))
	return sub, nil
}

func (uc *subcategoryUseCase) DeleteSubcategory(ctx context.Context, id string) error {
	sub, err := uc.GetSubcategory(ctx, id)
	if err != nil {
		return err
	}

	ok, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return apperr.DataAccess("delete subcategory", err)
	}
	if !ok {
		return apperr.NotFound(model.KindSubcategory.Singular(), id)
	}

	uc.afterMutation(ctx, event.New(event.TypeDeleted, model.KindSubcategory, id, sub.CategoryID))
	return nil
}

func (uc *subcategoryUseCase) requireCategory(ctx context.Context, categoryID string) error {
	if !model.ValidID(categoryID) {
		return apperr.NotFound(model.KindCategory.Singular(), categoryID)
	}
	cat, err := uc.categories.FindByID(ctx, categoryID)
	if err != nil {
		return apperr.DataAccess("get category", err)
	}
	if cat == nil {
		return apperr.NotFound(model.KindCategory.Singular(), categoryID)
	}
	return nil
}

func (uc *subcategoryUseCase) afterMutation(ctx context.Context, ev event.CatalogChanged) {
	cache.Invalidate(ctx, uc.cache, uc.logger, ev.InvalidatedKeys()...)

	if err := uc.events.Publish(ctx, ev); err != nil {
		uc.logger.Error("failed to publish catalog event", zap.String("event_type", ev.EventType), zap.String("subcategory_id", ev.EntityID), zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
