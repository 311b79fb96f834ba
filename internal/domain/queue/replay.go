package queue

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/eventbus"
	apperrors "dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/logging"
)

// Processor runs one queued item through the online pipeline.
type Processor interface {
	ProcessQueued(ctx context.Context, item model.QueuedItem) (model.AnalysisResult, error)
}

// Stop reasons reported by Replay.
const (
	StopNetwork      = "network"
	StopUnauthorized = "unauthorized"
	StopUpstream     = "upstream"
	StopCancelled    = "cancelled"
	StopError        = "error"
)

// Outcome is what happened to one item during a replay.
type Outcome struct {
	Item   model.QueuedItem
	Result *model.AnalysisResult
	Err    error
	// Dropped is true when the item was removed without a result.
	Dropped bool
}

// Report summarizes a replay run.
type Report struct {
	Attempted int
	Succeeded int
	Dropped   int
	Remaining int
	StoppedBy string
	Outcomes  []Outcome
}

// Replayer drains the queue oldest first. Concurrent Replay calls share one run.
type Replayer struct {
	queue  *Queue
	proc   Processor
	bus    *eventbus.Bus
	logger *logging.Logger
	group  singleflight.Group
}

func NewReplayer(q *Queue, proc Processor, bus *eventbus.Bus, logger *logging.Logger) *Replayer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Replayer{queue: q, proc: proc, bus: bus, logger: logger}
}

// Replay processes queued items until the queue is empty or an error says
// the backend is unreachable. Items that can never succeed are dropped.
func (r *Replayer) Replay(ctx context.Context) (Report, error) {
	v, err, shared := r.group.Do("replay", func() (interface{}, error) {
		return r.run(ctx)
	})
	if shared {
		r.logger.DebugTag("Queue", "replay joined an in-flight run")
	}
	report, _ := v.(Report)
	return report, err
}

func (r *Replayer) run(ctx context.Context) (Report, error) {
	var report Report

	items, err := r.queue.List(ctx)
	if err != nil {
		return report, err
	}
	r.logger.InfoTag("Queue", "replay started", map[string]any{"pending": len(items)})

	var runErr error
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			report.StoppedBy = StopCancelled
			report.Remaining = len(items) - i
			runErr = err
			break
		}

		report.Attempted++
		res, err := r.proc.ProcessQueued(ctx, item)
		if err == nil {
			if rmErr := r.queue.Remove(ctx, item.ID); rmErr != nil {
				runErr = rmErr
				report.StoppedBy = StopError
				report.Remaining = len(items) - i
				break
			}
			report.Succeeded++
			report.Outcomes = append(report.Outcomes, Outcome{Item: item, Result: &res})
			continue
		}

		report.Outcomes = append(report.Outcomes, Outcome{Item: item, Err: err})
		if isPermanent(err) {
			r.logger.WarnTag("Queue", "dropping queued item", map[string]any{
				"id":     item.ID,
				"status": apperrors.StatusOf(err),
				"error":  err.Error(),
			})
			if rmErr := r.queue.Remove(ctx, item.ID); rmErr != nil {
				runErr = rmErr
				report.StoppedBy = StopError
				report.Remaining = len(items) - i
				break
			}
			report.Outcomes[len(report.Outcomes)-1].Dropped = true
			report.Dropped++
			continue
		}

		report.StoppedBy = stopReason(err)
		report.Remaining = len(items) - i
		r.logger.WarnTag("Queue", "replay stopped", map[string]any{
			"id":        item.ID,
			"reason":    report.StoppedBy,
			"remaining": report.Remaining,
			"error":     err.Error(),
		})
		if report.StoppedBy == StopCancelled {
			runErr = err
		}
		break
	}

	r.logger.InfoTag("Queue", "replay finished", map[string]any{
		"attempted": report.Attempted,
		"succeeded": report.Succeeded,
		"dropped":   report.Dropped,
		"remaining": report.Remaining,
	})
	r.bus.Publish(eventbus.EventQueueReplayed, eventbus.QueueReplayedData{
		Attempted: report.Attempted,
		Succeeded: report.Succeeded,
		Dropped:   report.Dropped,
		Remaining: report.Remaining,
		StoppedBy: report.StoppedBy,
		At:        time.Now(),
	})
	return report, runErr
}

// isPermanent reports errors that retrying later cannot fix.
func isPermanent(err error) bool {
	if errors.Is(err, fs.ErrNotExist) || apperrors.IsKind(err, apperrors.KindImage) {
		return true
	}
	switch apperrors.StatusOf(err) {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func stopReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StopCancelled
	}
	if apperrors.IsNetwork(err) {
		return StopNetwork
	}
	status := apperrors.StatusOf(err)
	switch {
	case status == http.StatusUnauthorized:
		return StopUnauthorized
	case status >= 500:
		return StopUpstream
	default:
		return StopError
	}
}
