package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the slice of the kafka consumer the listener needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// CacheListener drops cached lists named by catalog events from other
// instances. Events carrying this instance's source were already applied
// locally before publishing.
type CacheListener struct {
	consumer MessageReader
	cache    cache.ListCache
	source   string
	logger   logger.ZapLogger
	backoff  time.Duration
}

func NewCacheListener(consumer MessageReader, c cache.ListCache, source string, logger logger.ZapLogger) *CacheListener {
	return &CacheListener{
		consumer: consumer,
		cache:    c,
		source:   source,
		logger:   logger,
		backoff:  time.Second,
	}
}

func (l *CacheListener) Start(ctx context.Context) error {
	l.logger.Info("Starting catalog cache listener", zap.String("source", l.source))
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping catalog cache listener")
			return nil
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				select {
				case <-time.After(l.backoff):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

func (l *CacheListener) processMessage(ctx context.Context, value []byte) {
	var ev event.CatalogChanged
	if err := json.Unmarshal(value, &ev); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch ev.EventType {
	case event.TypeCreated, event.TypeUpdated, event.TypeDeleted:
	default:
		return
	}
	if ev.Source == l.source {
		return
	}

	keys := ev.InvalidatedKeys()
	l.logger.Debug("Invalidating cached lists",
		zap.String("event_type", ev.EventType),
		zap.String("kind", string(ev.Kind)),
		zap.String("entity_id", ev.EntityID),
		zap.Strings("keys", keys),
	)
	cache.Invalidate(ctx, l.cache, l.logger, keys...)
}
