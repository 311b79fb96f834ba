package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/history"
)

func TestHistoryRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(openMemory(t))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, expl := range []string{"first", "second", "third"} {
		e := &history.Entry{
			Filename:    "/data/translations/translation_1.jpg",
			Explanation: expl,
			Confidence:  0.7,
			Tone:        model.ToneCalm,
			Breed:       "Beagle",
			ShareID:     "share-" + expl,
			Status:      model.StatusOK,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if e.ID == 0 {
			t.Fatalf("Save did not assign id")
		}
	}

	entries, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Explanation != "third" || entries[2].Explanation != "first" {
		t.Fatalf("expected newest first, got %q..%q", entries[0].Explanation, entries[2].Explanation)
	}
	if entries[0].Breed != "Beagle" || entries[0].ShareID != "share-third" || entries[0].Tone != model.ToneCalm {
		t.Fatalf("metadata not restored: %+v", entries[0])
	}

	limited, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(limited))
	}

	ok, err := repo.HasShareID(ctx, "share-second")
	if err != nil || !ok {
		t.Fatalf("HasShareID = %v, %v", ok, err)
	}
	ok, err = repo.HasShareID(ctx, "unknown")
	if err != nil || ok {
		t.Fatalf("HasShareID(unknown) = %v, %v", ok, err)
	}

	got, err := repo.Get(ctx, entries[1].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Explanation != "second" {
		t.Fatalf("Get returned %q", got.Explanation)
	}

	if err := repo.Delete(ctx, got.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, got.ID); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, got.ID); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count = %d, %v", count, err)
	}
}
