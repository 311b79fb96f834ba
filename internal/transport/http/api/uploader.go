package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// DefaultRetryDelay is the pause before re-issuing a request that got 502.
const DefaultRetryDelay = 2 * time.Second

// UploadRequest is one interpretation call.
type UploadRequest struct {
	ImageURI  string // file sent to the backend
	SourceURI string // original photo, queued instead of ImageURI when set
	Tone      model.Tone
	Save      bool
}

// Uploader performs an interpretation call.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (model.AnalysisResult, error)
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, req UploadRequest) (model.AnalysisResult, error)

func (f UploaderFunc) Upload(ctx context.Context, req UploadRequest) (model.AnalysisResult, error) {
	return f(ctx, req)
}

// RetryUploader re-issues a request exactly once after a fixed delay when
// the backend answers 502. Every other outcome is returned unchanged.
type RetryUploader struct {
	next   Uploader
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	logger *logging.Logger
}

func NewRetryUploader(next Uploader, delay time.Duration, logger *logging.Logger) *RetryUploader {
	if delay < 0 {
		delay = DefaultRetryDelay
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &RetryUploader{next: next, delay: delay, sleep: sleepContext, logger: logger}
}

func (r *RetryUploader) Upload(ctx context.Context, req UploadRequest) (model.AnalysisResult, error) {
	res, err := r.next.Upload(ctx, req)
	if err == nil || !apperrors.IsUpstreamUnavailable(err) {
		return res, err
	}

	r.logger.WarnTag("Retry", "upstream unavailable, retrying once", map[string]any{
		"delay_ms": r.delay.Milliseconds(),
		"tone":     string(req.Tone),
	})
	if err := r.sleep(ctx, r.delay); err != nil {
		return model.AnalysisResult{}, err
	}

	res, err = r.next.Upload(ctx, req)
	if err != nil {
		r.logger.ErrorTag("Retry", "retry failed", map[string]any{"error": err.Error()})
		return model.AnalysisResult{}, err
	}
	r.logger.InfoTag("Retry", "retry succeeded")
	return res, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrQueued matches every QueuedError.
var ErrQueued = errors.New("analysis queued for later")

const (
	QueueReasonOffline = "offline"
	QueueReasonNetwork = "network_error"
)

// QueuedError reports that a request was stored in the offline queue
// instead of being answered.
type QueuedError struct {
	Item   model.QueuedItem
	Reason string
	Cause  error
}

func (e *QueuedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("analysis queued (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("analysis queued (%s)", e.Reason)
}

func (e *QueuedError) Is(target error) bool {
	return target == ErrQueued
}

func (e *QueuedError) Unwrap() error {
	return e.Cause
}

// OnlineChecker reports whether the backend is reachable.
type OnlineChecker interface {
	Online(ctx context.Context) bool
}

// Enqueuer stores a request for later replay.
type Enqueuer interface {
	Enqueue(ctx context.Context, uri string, tone model.Tone) (model.QueuedItem, error)
}

// OfflineOptions configures an OfflineUploader.
type OfflineOptions struct {
	Checker OnlineChecker
	Queue   Enqueuer
	// QueueOnNetworkError also queues requests that got no response.
	QueueOnNetworkError bool
	Logger              *logging.Logger
}

// OfflineUploader queues requests while the backend is unreachable.
type OfflineUploader struct {
	next                Uploader
	checker             OnlineChecker
	queue               Enqueuer
	queueOnNetworkError bool
	logger              *logging.Logger
}

func NewOfflineUploader(next Uploader, opts OfflineOptions) *OfflineUploader {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &OfflineUploader{
		next:                next,
		checker:             opts.Checker,
		queue:               opts.Queue,
		queueOnNetworkError: opts.QueueOnNetworkError,
		logger:              opts.Logger,
	}
}

func (o *OfflineUploader) Upload(ctx context.Context, req UploadRequest) (model.AnalysisResult, error) {
	if o.checker != nil && !o.checker.Online(ctx) {
		if err := ctx.Err(); err != nil {
			return model.AnalysisResult{}, err
		}
		return model.AnalysisResult{}, o.enqueue(ctx, req, QueueReasonOffline, nil)
	}

	res, err := o.next.Upload(ctx, req)
	if err != nil && o.queueOnNetworkError && apperrors.IsNetwork(err) && ctx.Err() == nil {
		return model.AnalysisResult{}, o.enqueue(ctx, req, QueueReasonNetwork, err)
	}
	return res, err
}

func (o *OfflineUploader) enqueue(ctx context.Context, req UploadRequest, reason string, cause error) error {
	uri := req.SourceURI
	if uri == "" {
		uri = req.ImageURI
	}
	item, err := o.queue.Enqueue(ctx, uri, req.Tone)
	if err != nil {
		o.logger.ErrorTag("Offline", "failed to queue analysis: %v", err)
		if cause != nil {
			return errors.Join(cause, err)
		}
		return err
	}
	o.logger.InfoTag("Offline", "analysis queued", map[string]any{
		"id":     item.ID,
		"reason": reason,
		"tone":   string(req.Tone),
	})
	return &QueuedError{Item: item, Reason: reason, Cause: cause}
}
