// Package queue persists analyses that could not be uploaded and replays
// them once the backend is reachable again.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/kv"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// StorageKey is the KV key holding the queue as a JSON array.
const StorageKey = "offline_analysis_queue"

// storedItem is the persisted shape: string id, millisecond timestamp.
type storedItem struct {
	ID        string `json:"id"`
	URI       string `json:"uri"`
	Tone      string `json:"tone"`
	Timestamp int64  `json:"timestamp"`
}

// Queue is an append-only list of pending analyses ordered by creation time.
// Read-modify-write cycles are serialized within the process only.
type Queue struct {
	store  kv.Store
	logger *logging.Logger
	now    func() time.Time

	mu sync.Mutex
}

func New(store kv.Store, logger *logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Queue{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue appends a pending analysis. A nil error means the item is durable.
// IDs are creation milliseconds, bumped past the newest existing ID so that
// calls within one millisecond never collide.
func (q *Queue) Enqueue(ctx context.Context, uri string, tone model.Tone) (model.QueuedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return model.QueuedItem{}, err
	}

	now := q.now()
	id := now.UnixMilli()
	for _, it := range items {
		if n, err := strconv.ParseInt(it.ID, 10, 64); err == nil && n >= id {
			id = n + 1
		}
	}

	item := storedItem{
		ID:        strconv.FormatInt(id, 10),
		URI:       uri,
		Tone:      string(tone),
		Timestamp: now.UnixMilli(),
	}
	items = append(items, item)
	if err := q.save(ctx, items); err != nil {
		q.logger.ErrorTag("Queue", "failed to add to queue", map[string]any{"error": err.Error()})
		return model.QueuedItem{}, err
	}

	q.logger.InfoTag("Queue", "analysis queued", map[string]any{
		"id":     item.ID,
		"tone":   item.Tone,
		"length": len(items),
	})
	return item.toModel(), nil
}

// List returns the pending items, oldest first.
func (q *Queue) List(ctx context.Context) ([]model.QueuedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.QueuedItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return idLess(out[i].ID, out[j].ID)
	})
	return out, nil
}

// Len returns the number of pending items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.List(ctx)
	return len(items), err
}

// Remove deletes the item with id. Unknown ids are ignored.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		q.logger.DebugTag("Queue", "remove: id %s not queued", id)
		return nil
	}
	return q.save(ctx, kept)
}

// Clear drops every pending item.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Delete(ctx, StorageKey); err != nil {
		return apperrors.Wrap(apperrors.KindQueue, "queue.clear", "failed to clear queue", err)
	}
	q.logger.InfoTag("Queue", "queue cleared")
	return nil
}

func (q *Queue) load(ctx context.Context) ([]storedItem, error) {
	raw, err := q.store.Get(ctx, StorageKey)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindQueue, "queue.load", "failed to read queue", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []storedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, apperrors.Wrap(apperrors.KindQueue, "queue.decode", "queue data is corrupted", err)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []storedItem) error {
	if items == nil {
		items = []storedItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return apperrors.Wrap(apperrors.KindQueue, "queue.encode", "failed to encode queue", err)
	}
	if err := q.store.Set(ctx, StorageKey, raw); err != nil {
		return apperrors.Wrap(apperrors.KindQueue, "queue.save", "failed to persist queue", err)
	}
	return nil
}

func (it storedItem) toModel() model.QueuedItem {
	return model.QueuedItem{
		ID:        it.ID,
		URI:       it.URI,
		Tone:      model.Tone(it.Tone),
		Timestamp: time.UnixMilli(it.Timestamp),
	}
}

func idLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
