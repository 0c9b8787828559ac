package usecase_test

import (
	"context"
	"testing"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/cache"
	catdto "github.com/fekuna/evaluation-portal/internal/category/dto"
	"github.com/fekuna/evaluation-portal/internal/subcategory/dto"
	"github.com/fekuna/evaluation-portal/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCategory(t *testing.T, uc testutil.UseCases, name string) string {
	t.Helper()
	cat, err := uc.Categories.CreateCategory(context.Background(), &catdto.CreateCategoryInput{Name: name, NameAr: name})
	require.NoError(t, err)
	return cat.ID
}

func TestListSubcategoriesWithoutParent(t *testing.T) {
	store := testutil.NewStore()
	uc := store.UseCases(nil)

	subs, err := uc.Subcategories.ListSubcategories(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, subs)

	subs, err = uc.Subcategories.ListSubcategories(context.Background(), "garbage")
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, 0, store.Requests())
}

func TestListSubcategoriesSortedAndCached(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	uc := store.UseCases(nil)
	catID := seedCategory(t, uc, "Math")

	for i, name := range []string{"Geometry", "Algebra"} {
		_, err := uc.Subcategories.CreateSubcategory(ctx, &dto.CreateSubcategoryInput{
			CategoryID: catID, Name: name, NameAr: name, SortOrder: 1 - i,
		})
		require.NoError(t, err)
	}

	subs, err := uc.Subcategories.ListSubcategories(ctx, catID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Algebra", subs[0].Name)
	assert.Equal(t, "Geometry", subs[1].Name)

	before := store.Requests()
	_, err = uc.Subcategories.ListSubcategories(ctx, catID)
	require.NoError(t, err)
	assert.Equal(t, before, store.Requests())
}

func TestCreateSubcategoryRequiresCategory(t *testing.T) {
	uc := testutil.NewStore().UseCases(nil)

	_, err := uc.Subcategories.CreateSubcategory(context.Background(), &dto.CreateSubcategoryInput{
		CategoryID: uuid.NewString(), Name: "Algebra", NameAr: "جبر",
	})
	assert.True(t, apperr.IsNotFound(err))
}

func TestMovingSubcategoryInvalidatesBothParents(t *testing.T) {
	ctx := context.Background()
	uc := testutil.NewStore().UseCases(cache.NewLRUListCache(16, 0))
	from := seedCategory(t, uc, "Math")
	to := seedCategory(t, uc, "Science")

	sub, err := uc.Subcategories.CreateSubcategory(ctx, &dto.CreateSubcategoryInput{CategoryID: from, Name: "Stats", NameAr: "إحصاء"})
	require.NoError(t, err)

	fromList, err := uc.Subcategories.ListSubcategories(ctx, from)
	require.NoError(t, err)
	require.Len(t, fromList, 1)
	toList, err := uc.Subcategories.ListSubcategories(ctx, to)
	require.NoError(t, err)
	require.Empty(t, toList)

	_, err = uc.Subcategories.UpdateSubcategory(ctx, &dto.UpdateSubcategoryInput{
		ID: sub.ID, CategoryID: to, Name: "Stats", NameAr: "إحصاء",
	})
	require.NoError(t, err)

	fromList, err = uc.Subcategories.ListSubcategories(ctx, from)
	require.NoError(t, err)
	assert.Empty(t, fromList)
	toList, err = uc.Subcategories.ListSubcategories(ctx, to)
	require.NoError(t, err)
	assert.Len(t, toList, 1)
}

func TestOrphanedSubcategoryIsNotFound(t *testing.T) {
	ctx := context.Background()
	uc := testutil.NewStore().UseCases(nil)
	catID := seedCategory(t, uc, "Math")
	sub, err := uc.Subcategories.CreateSubcategory(ctx, &dto.CreateSubcategoryInput{CategoryID: catID, Name: "Algebra", NameAr: "جبر"})
	require.NoError(t, err)

	got, err := uc.Subcategories.GetSubcategory(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Math", got.Category.Name)

	require.NoError(t, uc.Categories.DeleteCategory(ctx, catID))

	_, err = uc.Subcategories.GetSubcategory(ctx, sub.ID)
	assert.True(t, apperr.IsNotFound(err))
	err = uc.Subcategories.DeleteSubcategory(ctx, sub.ID)
	assert.True(t, apperr.IsNotFound(err))
}
