package eventbus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/domain/analysis/model"
)

func TestBus_SyncDelivery(t *testing.T) {
	bus := New()
	var got AnalysisCompletedData
	require.NoError(t, bus.Subscribe(EventAnalysisCompleted, func(d AnalysisCompletedData) {
		got = d
	}))
	assert.True(t, bus.HasCallback(EventAnalysisCompleted))

	bus.Publish(EventAnalysisCompleted, AnalysisCompletedData{
		Result: model.AnalysisResult{Status: model.StatusOK, Explanation: "Sit"},
	})
	assert.Equal(t, "Sit", got.Result.Explanation)
}

func TestBus_AsyncDelivery(t *testing.T) {
	bus := New()
	var calls int32
	handler := func(QueueReplayedData) { atomic.AddInt32(&calls, 1) }
	require.NoError(t, bus.SubscribeAsync(EventQueueReplayed, handler))

	bus.Publish(EventQueueReplayed, QueueReplayedData{Attempted: 1})
	bus.Publish(EventQueueReplayed, QueueReplayedData{Attempted: 2})
	bus.WaitAsync()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	require.NoError(t, bus.Unsubscribe(EventQueueReplayed, handler))
	assert.False(t, bus.HasCallback(EventQueueReplayed))
}

func TestBus_NilIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(EventAnalysisQueued, AnalysisQueuedData{})
	bus.WaitAsync()
}
