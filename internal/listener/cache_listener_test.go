package listener

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fekuna/evaluation-portal/internal/cache"
	"github.com/fekuna/evaluation-portal/internal/event"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueReader struct {
	msgs chan kafka.Message
	errs chan error
}

func newQueueReader() *queueReader {
	return &queueReader{msgs: make(chan kafka.Message, 8), errs: make(chan error, 1)}
}

func (r *queueReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case err := <-r.errs:
		return kafka.Message{}, err
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *queueReader) push(t *testing.T, ev event.CatalogChanged) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	r.msgs <- kafka.Message{Value: data}
}

func seed(t *testing.T, c cache.ListCache, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, c.Set(context.Background(), k, []string{"x"}))
	}
}

func cached(c cache.ListCache, key string) bool {
	var dst []string
	ok, _ := c.Get(context.Background(), key, &dst)
	return ok
}

func TestCacheListenerInvalidatesPeerEvents(t *testing.T) {
	c := cache.NewLRUListCache(16, 0)
	catKey := cache.ListKey(model.KindCategory, "")
	subKey := cache.ListKey(model.KindSubcategory, "cat-1")
	evalKey := cache.ListKey(model.KindEvaluation, "sub-1")
	otherKey := cache.ListKey(model.KindSubcategory, "cat-2")
	seed(t, c, catKey, subKey, evalKey, otherKey)

	r := newQueueReader()
	l := NewCacheListener(r, c, "instance-a", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	ev := event.New(event.TypeDeleted, model.KindCategory, "cat-1")
	ev.OrphanIDs = []string{"sub-1"}
	ev.Source = "instance-b"
	r.push(t, ev)

	assert.Eventually(t, func() bool { return !cached(c, catKey) }, time.Second, 5*time.Millisecond)
	assert.False(t, cached(c, subKey))
	assert.False(t, cached(c, evalKey))
	assert.True(t, cached(c, otherKey))

	cancel()
	require.NoError(t, <-done)
}

func TestCacheListenerSkipsOwnEvents(t *testing.T) {
	c := cache.NewLRUListCache(16, 0)
	key := cache.ListKey(model.KindEvaluation, "sub-1")
	seed(t, c, key)

	l := NewCacheListener(newQueueReader(), c, "instance-a", logger.NewNop())

	own := event.New(event.TypeCreated, model.KindEvaluation, "e1", "sub-1")
	own.Source = "instance-a"
	data, _ := json.Marshal(own)
	l.processMessage(context.Background(), data)
	assert.True(t, cached(c, key))

	l.processMessage(context.Background(), []byte(`{"event_type":"OrderCreated"}`))
	l.processMessage(context.Background(), []byte(`not json`))
	assert.True(t, cached(c, key))

	own.Source = "instance-b"
	data, _ = json.Marshal(own)
	l.processMessage(context.Background(), data)
	assert.False(t, cached(c, key))
}

func TestCacheListenerBacksOffOnReadErrors(t *testing.T) {
	r := newQueueReader()
	l := NewCacheListener(r, cache.Nop{}, "instance-a", logger.NewNop())
	l.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Start(ctx) }()

	r.errs <- errors.New("broker unavailable")
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop during backoff")
	}
}
