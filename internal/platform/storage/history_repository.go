package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/history"
)

// historyMetadata holds the result fields without a dedicated column.
type historyMetadata struct {
	Breed   string `json:"breed,omitempty"`
	Source  string `json:"source,omitempty"`
	ShareID string `json:"share_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// HistoryRepository stores translations in the history table.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Save(ctx context.Context, e *history.Entry) error {
	rec, err := toHistoryRecord(e)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("save history entry: %w", err)
	}
	e.ID = rec.ID
	e.CreatedAt = rec.CreatedAt
	return nil
}

func (r *HistoryRepository) List(ctx context.Context, limit int) ([]history.Entry, error) {
	var records []HistoryRecord
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	out := make([]history.Entry, 0, len(records))
	for i := range records {
		out = append(out, fromHistoryRecord(&records[i]))
	}
	return out, nil
}

func (r *HistoryRepository) Get(ctx context.Context, id uint) (*history.Entry, error) {
	var rec HistoryRecord
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	e := fromHistoryRecord(&rec)
	return &e, nil
}

func (r *HistoryRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&HistoryRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete history entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return history.ErrNotFound
	}
	return nil
}

func (r *HistoryRepository) HasShareID(ctx context.Context, shareID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&HistoryRecord{}).Where("share_id = ?", shareID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup share id: %w", err)
	}
	return count > 0, nil
}

func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&HistoryRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func toHistoryRecord(e *history.Entry) (*HistoryRecord, error) {
	meta, err := json.Marshal(historyMetadata{
		Breed:   e.Breed,
		Source:  e.Source,
		ShareID: e.ShareID,
		Status:  e.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("encode history metadata: %w", err)
	}
	return &HistoryRecord{
		Filename:    e.Filename,
		Explanation: e.Explanation,
		Confidence:  e.Confidence,
		Tone:        string(e.Tone),
		ShareID:     e.ShareID,
		Metadata:    datatypes.JSON(meta),
		CreatedAt:   e.CreatedAt,
	}, nil
}

func fromHistoryRecord(rec *HistoryRecord) history.Entry {
	var meta historyMetadata
	if len(rec.Metadata) > 0 {
		_ = json.Unmarshal(rec.Metadata, &meta)
	}
	shareID := rec.ShareID
	if shareID == "" {
		shareID = meta.ShareID
	}
	status := meta.Status
	if status == "" {
		status = model.StatusOK
	}
	return history.Entry{
		ID:          rec.ID,
		Filename:    rec.Filename,
		Explanation: rec.Explanation,
		Confidence:  rec.Confidence,
		Tone:        model.Tone(rec.Tone),
		Breed:       meta.Breed,
		Source:      meta.Source,
		ShareID:     shareID,
		Status:      status,
		CreatedAt:   rec.CreatedAt,
	}
}
