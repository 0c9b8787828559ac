package cache

import (
	"context"
	"fmt"

	"github.com/fekuna/evaluation-portal/internal/model"
)

// ListCache stores parent-scoped list results as JSON.
type ListCache interface {
	// Get decodes the entry into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

const keyPrefix = "portal:list"

// ListKey is the cache key of list(parentID) for a kind. Categories have no parent.
func ListKey(kind model.Kind, parentID string) string {
	if kind == model.KindCategory || parentID == "" {
		return fmt.Sprintf("%s:%s:all", keyPrefix, kind)
	}
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, parentID)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, interface{}) error          { return nil }
func (Nop) Delete(context.Context, ...string) error                 { return nil }
