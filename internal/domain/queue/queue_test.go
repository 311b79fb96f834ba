package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/kv"
	testutil "dogtranslator/internal/platform/testing"
)

func frozenQueue(store kv.Store, at time.Time) *Queue {
	q := New(store, nil)
	q.now = func() time.Time { return at }
	return q
}

func TestEnqueueThenList(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemory(), nil)

	item, err := q.Enqueue(ctx, "file:///tmp/dog.jpg", model.ToneCalm)
	require.NoError(t, err)

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "file:///tmp/dog.jpg", items[0].URI)
	assert.Equal(t, model.ToneCalm, items[0].Tone)
	assert.Equal(t, item.ID, items[0].ID)
	assert.WithinDuration(t, time.Now(), items[0].Timestamp, 5*time.Second)
}

func TestEnqueueIDsUniqueWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)
	q := frozenQueue(kv.NewMemory(), at)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		item, err := q.Enqueue(ctx, "file:///tmp/dog.jpg", model.TonePlayful)
		require.NoError(t, err)
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 50)
	assert.Equal(t, "1700000000000", items[0].ID)
	for i := 1; i < len(items); i++ {
		assert.True(t, idLess(items[i-1].ID, items[i].ID), "ids must increase")
	}
}

func TestEnqueueConcurrentCallsDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	q := frozenQueue(kv.NewMemory(), time.UnixMilli(42))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(ctx, "file:///x.jpg", model.ToneTrainer)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemory(), nil)

	a, err := q.Enqueue(ctx, "file:///a.jpg", model.TonePlayful)
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, "file:///b.jpg", model.TonePlayful)
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, a.ID))
	require.NoError(t, q.Remove(ctx, "does-not-exist"))

	items, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	require.NoError(t, q.Clear(ctx))
	items, err = q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPersistedFormat(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	at := time.UnixMilli(1_700_000_000_123)
	q := frozenQueue(store, at)

	_, err := q.Enqueue(ctx, "file:///a.jpg", model.ToneCalm)
	require.NoError(t, err)

	raw, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)

	var stored []map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "1700000000123", stored[0]["id"])
	assert.Equal(t, "file:///a.jpg", stored[0]["uri"])
	assert.Equal(t, "calm", stored[0]["tone"])
	assert.Equal(t, float64(1_700_000_000_123), stored[0]["timestamp"])
}

func TestQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenTestDB(t)
	store, err := kv.NewSQLite(db)
	require.NoError(t, err)

	_, err = New(store, nil).Enqueue(ctx, "file:///a.jpg", model.TonePlayful)
	require.NoError(t, err)

	reopened, err := kv.NewSQLite(db)
	require.NoError(t, err)
	items, err := New(reopened, nil).List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "file:///a.jpg", items[0].URI)
}

func TestCorruptedQueueIsReported(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, StorageKey, []byte("{not json")))

	q := New(store, nil)
	_, err := q.List(ctx)
	assert.Error(t, err)

	_, err = q.Enqueue(ctx, "file:///a.jpg", model.TonePlayful)
	assert.Error(t, err, "enqueue must not overwrite unreadable data")
}
