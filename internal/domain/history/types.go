package history

import (
	"context"
	"errors"
	"time"

	"dogtranslator/internal/domain/analysis/model"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("history: entry not found")

// Entry is a saved translation.
type Entry struct {
	ID          uint
	Filename    string // local copy of the photo, empty for synced entries without one
	Explanation string
	Confidence  float64
	Tone        model.Tone
	Breed       string
	Source      string
	ShareID     string
	Status      string
	CreatedAt   time.Time
}

// Result rebuilds the analysis result stored in e.
func (e Entry) Result() model.AnalysisResult {
	return model.AnalysisResult{
		Status:      e.Status,
		Explanation: e.Explanation,
		Confidence:  e.Confidence,
		Breed:       e.Breed,
		Source:      e.Source,
		ShareID:     e.ShareID,
	}
}

// Repository persists entries.
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	// List returns entries newest first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, id uint) (*Entry, error)
	Delete(ctx context.Context, id uint) error
	HasShareID(ctx context.Context, shareID string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// RemoteRecord is one element of the backend history listing.
type RemoteRecord struct {
	Result    model.AnalysisResult
	Tone      model.Tone
	ImageURL  string
	CreatedAt time.Time
}

// RemoteSource lists the history kept by the backend.
type RemoteSource interface {
	History(ctx context.Context) ([]RemoteRecord, error)
}
