package eventbus

import (
	"time"

	"dogtranslator/internal/domain/analysis/model"
)

// Event topics.
const (
	EventAnalysisCompleted = "analysis:completed"
	EventAnalysisQueued    = "analysis:queued"
	EventAnalysisFailed    = "analysis:failed"
	EventQueueReplayed     = "queue:replayed"
)

// AnalysisCompletedData is published after a result was normalized.
type AnalysisCompletedData struct {
	Request  model.AnalysisRequest `json:"request"`
	Result   model.AnalysisResult  `json:"result"`
	Replayed bool                  `json:"replayed"`
	At       time.Time             `json:"at"`
}

// AnalysisQueuedData is published when an upload was deferred.
type AnalysisQueuedData struct {
	Item   model.QueuedItem `json:"item"`
	Reason string           `json:"reason"`
}

// AnalysisFailedData is published when an upload failed for good.
type AnalysisFailedData struct {
	Request model.AnalysisRequest `json:"request"`
	Status  int                   `json:"status"`
	Message string                `json:"message"`
	Err     error                 `json:"-"`
}

// QueueReplayedData summarizes one replay run.
type QueueReplayedData struct {
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Dropped   int       `json:"dropped"`
	Remaining int       `json:"remaining"`
	StoppedBy string    `json:"stopped_by,omitempty"`
	At        time.Time `json:"at"`
}
