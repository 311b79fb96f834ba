package history

import (
	"context"
	"time"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/eventbus"
	"dogtranslator/internal/platform/logging"
)

const recordTimeout = 10 * time.Second

// Recorder saves completed analyses the user asked to keep.
type Recorder struct {
	svc    *Service
	logger *logging.Logger
}

func NewRecorder(svc *Service, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Recorder{svc: svc, logger: logger}
}

// Attach subscribes the recorder to completed analyses.
func (r *Recorder) Attach(bus *eventbus.Bus) error {
	return bus.Subscribe(eventbus.EventAnalysisCompleted, r.OnAnalysisCompleted)
}

// ShouldRecord reports whether a completed analysis is kept: the request
// asked for it and a dog was detected.
func ShouldRecord(req model.AnalysisRequest, res model.AnalysisResult) bool {
	return req.Save && res.Status == model.StatusOK && res.Confidence != 0
}

func (r *Recorder) OnAnalysisCompleted(d eventbus.AnalysisCompletedData) {
	if !ShouldRecord(d.Request, d.Result) {
		r.logger.DebugTag("History", "result not recorded", map[string]any{
			"save":       d.Request.Save,
			"status":     d.Result.Status,
			"confidence": d.Result.Confidence,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := r.svc.Add(ctx, d.Request.ImageURI, d.Request.Tone, d.Result); err != nil {
		r.logger.ErrorTag("History", "failed to record translation", map[string]any{"error": err.Error()})
	}
}
