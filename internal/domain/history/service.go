package history

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/image"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// ImageDirName is the folder under the data dir holding saved photos.
const ImageDirName = "translations"

// Service manages saved translations and their photos.
type Service struct {
	repo     Repository
	imageDir string
	remote   RemoteSource
	logger   *logging.Logger
	now      func() time.Time
}

// Options configures a Service.
type Options struct {
	Repository Repository
	DataDir    string
	Remote     RemoteSource
	Logger     *logging.Logger
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Service{
		repo:     opts.Repository,
		imageDir: filepath.Join(opts.DataDir, ImageDirName),
		remote:   opts.Remote,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// ImageDir is where photos of saved translations are copied.
func (s *Service) ImageDir() string {
	return s.imageDir
}

// Add copies the photo into the data directory and records the result.
// imageURI may be empty, in which case no photo is kept.
func (s *Service) Add(ctx context.Context, imageURI string, tone model.Tone, res model.AnalysisResult) (*Entry, error) {
	now := s.now()
	entry := &Entry{
		Explanation: res.Explanation,
		Confidence:  res.Confidence,
		Tone:        tone,
		Breed:       res.Breed,
		Source:      res.Source,
		ShareID:     res.ShareID,
		Status:      res.Status,
		CreatedAt:   now,
	}

	if imageURI != "" {
		dest, err := s.copyImage(image.FilePath(imageURI), now)
		if err != nil {
			return nil, err
		}
		entry.Filename = dest
	}

	if err := s.repo.Save(ctx, entry); err != nil {
		if entry.Filename != "" {
			os.Remove(entry.Filename)
		}
		return nil, err
	}
	s.logger.InfoTag("History", "translation saved", map[string]any{
		"id":         entry.ID,
		"tone":       string(tone),
		"confidence": entry.Confidence,
		"share_id":   entry.ShareID,
	})
	return entry, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) Get(ctx context.Context, id uint) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Delete removes the entry and its photo copy.
func (s *Service) Delete(ctx context.Context, id uint) error {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if entry.Filename != "" && s.ownsFile(entry.Filename) {
		if err := os.Remove(entry.Filename); err != nil && !os.IsNotExist(err) {
			s.logger.WarnTag("History", "failed to delete photo %s: %v", entry.Filename, err)
		}
	}
	s.logger.InfoTag("History", "entry deleted", map[string]any{"id": id})
	return nil
}

// SyncResult counts what SyncRemote did.
type SyncResult struct {
	Fetched  int
	Imported int
	Skipped  int
}

// SyncRemote imports backend records whose share id is not known locally.
// Local entries are never modified.
func (s *Service) SyncRemote(ctx context.Context) (SyncResult, error) {
	var out SyncResult
	if s.remote == nil {
		return out, apperrors.New(apperrors.KindConfig, "history.sync", "no remote history source configured")
	}

	records, err := s.remote.History(ctx)
	if err != nil {
		s.logger.WarnTag("History", "remote history unavailable", map[string]any{"error": err.Error()})
		return out, err
	}
	out.Fetched = len(records)

	for _, rec := range records {
		shareID := rec.Result.ShareID
		if shareID == "" {
			out.Skipped++
			continue
		}
		known, err := s.repo.HasShareID(ctx, shareID)
		if err != nil {
			return out, err
		}
		if known {
			out.Skipped++
			continue
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.now()
		}
		entry := &Entry{
			Filename:    rec.ImageURL,
			Explanation: rec.Result.Explanation,
			Confidence:  rec.Result.Confidence,
			Tone:        rec.Tone,
			Breed:       rec.Result.Breed,
			Source:      rec.Result.Source,
			ShareID:     shareID,
			Status:      rec.Result.Status,
			CreatedAt:   createdAt,
		}
		if err := s.repo.Save(ctx, entry); err != nil {
			return out, err
		}
		out.Imported++
	}

	s.logger.InfoTag("History", "remote sync finished", map[string]any{
		"fetched":  out.Fetched,
		"imported": out.Imported,
		"skipped":  out.Skipped,
	})
	return out, nil
}

func (s *Service) copyImage(src string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.imageDir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.KindStorage, "history.mkdir", "failed to create image directory", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorage, "history.copy", "cannot open photo", err)
	}
	defer in.Close()

	// translation_<unix ms>.jpg, suffixed on collision
	base := fmt.Sprintf("translation_%d", at.UnixMilli())
	dest := filepath.Join(s.imageDir, base+".jpg")
	var out *os.File
	for i := 1; ; i++ {
		out, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) || i > 100 {
			return "", apperrors.Wrap(apperrors.KindStorage, "history.copy", "cannot create photo copy", err)
		}
		dest = filepath.Join(s.imageDir, fmt.Sprintf("%s_%d.jpg", base, i))
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", apperrors.Wrap(apperrors.KindStorage, "history.copy", "failed to copy photo", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", apperrors.Wrap(apperrors.KindStorage, "history.copy", "failed to copy photo", err)
	}
	return dest, nil
}

func (s *Service) ownsFile(path string) bool {
	dir, err := filepath.Abs(s.imageDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == dir
}
