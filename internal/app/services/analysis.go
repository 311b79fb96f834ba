package services

import (
	"context"
	"errors"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/eventbus"
	"dogtranslator/internal/domain/image"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
	"dogtranslator/internal/transport/http/api"
)

// Preprocessor bounds a photo before upload.
type Preprocessor interface {
	Process(ctx context.Context, uri string) (*image.Result, error)
	Discard(uri string) error
}

// ScanGate enforces and records the daily free scan allowance.
type ScanGate interface {
	CheckDailyLimit() error
	RecordScan(ctx context.Context) (int, error)
}

// AnalysisConfig wires an AnalysisService.
type AnalysisConfig struct {
	Preprocessor Preprocessor
	// Uploader serves user requests; it may queue while offline.
	Uploader api.Uploader
	// ReplayUploader serves queued items and must not queue again.
	// Defaults to Uploader.
	ReplayUploader api.Uploader
	Gate           ScanGate
	Bus            *eventbus.Bus
	Logger         *logging.Logger
}

// AnalysisService runs the photo to interpretation pipeline.
type AnalysisService struct {
	pre    Preprocessor
	online api.Uploader
	replay api.Uploader
	gate   ScanGate
	bus    *eventbus.Bus
	logger *logging.Logger
}

func NewAnalysisService(cfg *AnalysisConfig) (*AnalysisService, error) {
	if cfg == nil || cfg.Preprocessor == nil || cfg.Uploader == nil {
		return nil, apperrors.New(apperrors.KindBootstrap, "services.analysis", "preprocessor and uploader are required")
	}
	replay := cfg.ReplayUploader
	if replay == nil {
		replay = cfg.Uploader
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &AnalysisService{
		pre:    cfg.Preprocessor,
		online: cfg.Uploader,
		replay: replay,
		gate:   cfg.Gate,
		bus:    cfg.Bus,
		logger: logger,
	}, nil
}

type analyzeOptions struct {
	skipDailyLimit bool
}

// AnalyzeOption tunes a single Analyze call.
type AnalyzeOption func(*analyzeOptions)

// SkipDailyLimit bypasses the advisory daily scan limit.
func SkipDailyLimit() AnalyzeOption {
	return func(o *analyzeOptions) { o.skipDailyLimit = true }
}

// Analyze interprets the photo in req. When the request was queued for
// later, the returned error matches api.ErrQueued. A reply with status
// "error" comes back with a nil error; callers check res.Status.
func (s *AnalysisService) Analyze(ctx context.Context, req model.AnalysisRequest, opts ...AnalyzeOption) (model.AnalysisResult, error) {
	var o analyzeOptions
	for _, opt := range opts {
		opt(&o)
	}

	tone, err := model.ParseTone(string(req.Tone))
	if err != nil {
		return model.AnalysisResult{}, apperrors.Wrap(apperrors.KindDomain, "analysis.tone", "invalid tone", err)
	}
	req.Tone = tone
	req.ImageURI = image.NormalizeFileURI(req.ImageURI)

	if s.gate != nil && !o.skipDailyLimit {
		if err := s.gate.CheckDailyLimit(); err != nil {
			s.logger.WarnTag("Session", "daily scan limit reached")
			s.publishFailed(req, err)
			return model.AnalysisResult{}, err
		}
	}

	res, err := s.run(ctx, req, s.online)
	if err != nil {
		var queued *api.QueuedError
		if errors.As(err, &queued) {
			s.bus.Publish(eventbus.EventAnalysisQueued, eventbus.AnalysisQueuedData{
				Item:   queued.Item,
				Reason: queued.Reason,
			})
			return model.AnalysisResult{}, err
		}
		s.publishFailed(req, err)
		return model.AnalysisResult{}, err
	}

	s.settle(ctx, req, res, false)
	return res, nil
}

// ProcessQueued replays one queued item through the pipeline.
func (s *AnalysisService) ProcessQueued(ctx context.Context, item model.QueuedItem) (model.AnalysisResult, error) {
	req := model.AnalysisRequest{ImageURI: image.NormalizeFileURI(item.URI), Tone: item.Tone}
	if !req.Tone.Valid() {
		req.Tone = model.DefaultTone
	}

	res, err := s.run(ctx, req, s.replay)
	if err != nil {
		s.publishFailed(req, err)
		return model.AnalysisResult{}, err
	}
	s.settle(ctx, req, res, true)
	return res, nil
}

func (s *AnalysisService) run(ctx context.Context, req model.AnalysisRequest, up api.Uploader) (model.AnalysisResult, error) {
	start := time.Now()
	pre, err := s.pre.Process(ctx, req.ImageURI)
	if err != nil {
		s.logger.ErrorTag("Image", "preprocessing failed: %v", err)
		return model.AnalysisResult{}, err
	}
	defer func() {
		if err := s.pre.Discard(pre.URI); err != nil {
			s.logger.WarnTag("Image", "failed to remove compressed copy: %v", err)
		}
	}()

	res, err := up.Upload(ctx, api.UploadRequest{
		ImageURI:  pre.URI,
		SourceURI: req.ImageURI,
		Tone:      req.Tone,
		Save:      req.Save,
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}

	s.logger.InfoTag("Upload", "analysis finished", map[string]any{
		"status":     res.Status,
		"confidence": res.Confidence,
		"no_dog":     res.NoDogDetected(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}

// settle publishes the outcome of a reply. A reply with status "error" is
// returned to the caller but reported as a failure.
func (s *AnalysisService) settle(ctx context.Context, req model.AnalysisRequest, res model.AnalysisResult, replayed bool) {
	if res.Status == model.StatusError {
		err := ResultError(res)
		s.logger.WarnTag("Upload", "backend reported an error: %s", err.Message)
		s.bus.Publish(eventbus.EventAnalysisFailed, eventbus.AnalysisFailedData{
			Request: req,
			Message: err.Message,
			Err:     err,
		})
		return
	}
	s.complete(ctx, req, res, replayed)
}

// ResultError describes a reply whose status is "error".
func ResultError(res model.AnalysisResult) *apperrors.Error {
	msg := res.Error
	if msg == "" {
		msg = "the translation service could not interpret this photo"
	}
	return apperrors.New(apperrors.KindDomain, "analysis.result", msg)
}

func (s *AnalysisService) complete(ctx context.Context, req model.AnalysisRequest, res model.AnalysisResult, replayed bool) {
	if s.gate != nil && res.Status == model.StatusOK {
		if _, err := s.gate.RecordScan(ctx); err != nil {
			s.logger.WarnTag("Session", "failed to record scan: %v", err)
		}
	}
	s.bus.Publish(eventbus.EventAnalysisCompleted, eventbus.AnalysisCompletedData{
		Request:  req,
		Result:   res,
		Replayed: replayed,
		At:       time.Now(),
	})
}

func (s *AnalysisService) publishFailed(req model.AnalysisRequest, err error) {
	data := eventbus.AnalysisFailedData{
		Request: req,
		Status:  apperrors.StatusOf(err),
		Message: err.Error(),
		Err:     err,
	}
	if apiErr, ok := apperrors.AsAPIError(err); ok {
		data.Message = apiErr.UserMessage()
	}
	s.bus.Publish(eventbus.EventAnalysisFailed, data)
}
