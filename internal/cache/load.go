package cache

import (
	"context"

	"github.com/fekuna/evaluation-portal/internal/logger"
	"go.uber.org/zap"
)

// Load serves key from c, falling back to fetch and storing its result.
// Cache failures are logged and never fail the read.
func Load[T any](ctx context.Context, c ListCache, log logger.ZapLogger, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	var cached []T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("list cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		if cached == nil {
			cached = []T{}
		}
		return cached, nil
	}

	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	if err := c.Set(ctx, key, items); err != nil {
		log.Warn("list cache write failed", zap.String("key", key), zap.Error(err))
	}
	return items, nil
}

// Invalidate drops keys, logging instead of failing.
func Invalidate(ctx context.Context, c ListCache, log logger.ZapLogger, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		log.Warn("list cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
