package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/google/uuid"
)

const (
	TypeCreated = "CatalogEntityCreated"
	TypeUpdated = "CatalogEntityUpdated"
	TypeDeleted = "CatalogEntityDeleted"
)

// CatalogChanged is published after every successful mutation. ParentIDs lists
// every parent whose child list changed (two when a child moved). OrphanIDs
// carries the subcategories left behind by a category delete.
type CatalogChanged struct {
	EventID   string     `json:"event_id"`
	EventType string     `json:"event_type"`
	Source    string     `json:"source"`
	Kind      model.Kind `json:"kind"`
	EntityID  string     `json:"entity_id"`
	ParentIDs []string   `json:"parent_ids,omitempty"`
	OrphanIDs []string   `json:"orphan_ids,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func New(eventType string, kind model.Kind, entityID string, parentIDs ...string) CatalogChanged {
	parents := make([]string, 0, len(parentIDs))
	seen := make(map[string]struct{}, len(parentIDs))
	for _, p := range parentIDs {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		parents = append(parents, p)
	}
	return CatalogChanged{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Kind:      kind,
		EntityID:  entityID,
		ParentIDs: parents,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev CatalogChanged) error
}

// MessageWriter is the slice of the kafka producer the publisher needs.
type MessageWriter interface {
	WriteMessage(ctx context.Context, key, value []byte) error
}

type BrokerPublisher struct {
	writer MessageWriter
	source string
}

func NewBrokerPublisher(w MessageWriter, source string) *BrokerPublisher {
	return &BrokerPublisher{writer: w, source: source}
}

func (p *BrokerPublisher) Publish(ctx context.Context, ev CatalogChanged) error {
	ev.Source = p.source
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessage(ctx, []byte(string(ev.Kind)+":"+ev.EntityID), data)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, CatalogChanged) error { return nil }

// InvalidatedKeys lists the list-cache keys made stale by the change.
func (ev CatalogChanged) InvalidatedKeys() []string {
	var keys []string
	switch ev.Kind {
	case model.KindCategory:
		keys = append(keys, cache.ListKey(model.KindCategory, ""))
		if ev.EventType == TypeDeleted {
			keys = append(keys, cache.ListKey(model.KindSubcategory, ev.EntityID))
			for _, sub := range ev.OrphanIDs {
				keys = append(keys, cache.ListKey(model.KindEvaluation, sub))
			}
		}
	case model.KindSubcategory:
		for _, p := range ev.ParentIDs {
			keys = append(keys, cache.ListKey(model.KindSubcategory, p))
		}
		if ev.EventType == TypeDeleted {
			keys = append(keys, cache.ListKey(model.KindEvaluation, ev.EntityID))
		}
	case model.KindEvaluation:
		for _, p := range ev.ParentIDs {
			keys = append(keys, cache.ListKey(model.KindEvaluation, p))
		}
	}
	return keys
}
