package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/category/dto"
	"github.com/fekuna/evaluation-portal/internal/category/usecase"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	subdto "github.com/fekuna/evaluation-portal/internal/subcategory/dto"
	"github.com/fekuna/evaluation-portal/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.CatalogChanged
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev event.CatalogChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func TestListCategoriesIsCachedUntilMutation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), cache.NewLRUListCache(16, 0), event.NopPublisher{}, logger.NewNop())

	_, err := uc.CreateCategory(ctx, &dto.CreateCategoryInput{Name: "Math", NameAr: "رياضيات"})
	require.NoError(t, err)

	cats, err := uc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	before := store.Requests()

	_, err = uc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, store.Requests(), "second list should be served from cache")

	_, err = uc.CreateCategory(ctx, &dto.CreateCategoryInput{Name: "Science", NameAr: "علوم"})
	require.NoError(t, err)
	cats, err = uc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestCategoryStoreFailureIsDataAccess(t *testing.T) {
	store := testutil.NewStore()
	store.Err = errors.New("connection refused")
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), cache.Nop{}, event.NopPublisher{}, logger.NewNop())

	_, err := uc.ListCategories(context.Background())
	assert.True(t, apperr.IsDataAccess(err))

	_, err = uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{Name: "a", NameAr: "ب"})
	assert.True(t, apperr.IsDataAccess(err))
}

func TestGetCategoryNotFound(t *testing.T) {
	store := testutil.NewStore()
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), cache.Nop{}, event.NopPublisher{}, logger.NewNop())

	_, err := uc.GetCategory(context.Background(), "not-a-uuid")
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, 0, store.Requests())

	_, err = uc.GetCategory(context.Background(), uuid.NewString())
	assert.True(t, apperr.IsNotFound(err))

	_, err = uc.UpdateCategory(context.Background(), &dto.UpdateCategoryInput{ID: uuid.NewString(), Name: "x", NameAr: "س"})
	assert.True(t, apperr.IsNotFound(err))

	err = uc.DeleteCategory(context.Background(), uuid.NewString())
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateCategoryClearsOptionalFields(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), cache.Nop{}, event.NopPublisher{}, logger.NewNop())

	cat, err := uc.CreateCategory(ctx, &dto.CreateCategoryInput{Name: "Math", NameAr: "رياضيات", Description: "numbers"})
	require.NoError(t, err)
	require.NotNil(t, cat.Description)

	updated, err := uc.UpdateCategory(ctx, &dto.UpdateCategoryInput{ID: cat.ID, Name: "Maths", NameAr: "رياضيات"})
	require.NoError(t, err)
	assert.Equal(t, "Maths", updated.Name)
	assert.Nil(t, updated.Description)

	got, err := uc.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maths", got.Name)
}

func TestDeleteCategoryPublishesOrphans(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	c := cache.NewLRUListCache(16, 0)
	pub := &recordingPublisher{}
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), c, pub, logger.NewNop())
	subs := store.UseCases(c).Subcategories

	cat, err := uc.CreateCategory(ctx, &dto.CreateCategoryInput{Name: "Math", NameAr: "رياضيات"})
	require.NoError(t, err)
	sub, err := subs.CreateSubcategory(ctx, &subdto.CreateSubcategoryInput{CategoryID: cat.ID, Name: "Algebra", NameAr: "جبر"})
	require.NoError(t, err)

	listed, err := subs.ListSubcategories(ctx, cat.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, uc.DeleteCategory(ctx, cat.ID))

	require.Len(t, pub.events, 2)
	del := pub.events[1]
	assert.Equal(t, event.TypeDeleted, del.EventType)
	assert.Equal(t, model.KindCategory, del.Kind)
	assert.Equal(t, []string{sub.ID}, del.OrphanIDs)

	listed, err = subs.ListSubcategories(ctx, cat.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := testutil.NewStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	uc := usecase.NewCategoryUseCase(store.Categories(), store.Subcategories(), cache.Nop{}, pub, logger.NewNop())

	cat, err := uc.CreateCategory(context.Background(), &dto.CreateCategoryInput{Name: "Math", NameAr: "رياضيات"})
	require.NoError(t, err)
	assert.NotEmpty(t, cat.ID)
}
