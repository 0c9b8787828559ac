package cache

import (
	"context"
	"testing"
	"time"

	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListKey(t *testing.T) {
	assert.Equal(t, "portal:list:categories:all", ListKey(model.KindCategory, "ignored"))
	assert.Equal(t, "portal:list:subcategories:c1", ListKey(model.KindSubcategory, "c1"))
	assert.Equal(t, "portal:list:evaluations:s1", ListKey(model.KindEvaluation, "s1"))
	assert.NotEqual(t, ListKey(model.KindSubcategory, "x"), ListKey(model.KindEvaluation, "x"))
}

func TestLRUListCacheRoundTripAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewLRUListCache(4, time.Minute)
	key := ListKey(model.KindSubcategory, "c1")

	var got []model.Subcategory
	hit, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, key, []model.Subcategory{{CategoryID: "c1", Name: "Algebra", SortOrder: 1}}))

	hit, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, got, 1)
	assert.Equal(t, "Algebra", got[0].Name)

	require.NoError(t, c.Delete(ctx, key))
	hit, _ = c.Get(ctx, key, &got)
	assert.False(t, hit)
}

func TestLRUListCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUListCache(4, time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []string{"a"}))
	now = now.Add(2 * time.Minute)

	var got []string
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
