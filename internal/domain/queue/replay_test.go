package queue

import (
	"context"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dogtranslator/internal/domain/analysis/model"
	"dogtranslator/internal/domain/eventbus"
	"dogtranslator/internal/domain/kv"
	apperrors "dogtranslator/internal/platform/errors"
)

type scriptedProcessor struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
	gate  chan struct{}
	count int32
}

func (p *scriptedProcessor) ProcessQueued(_ context.Context, item model.QueuedItem) (model.AnalysisResult, error) {
	atomic.AddInt32(&p.count, 1)
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, item.URI)
	if err := p.errs[item.URI]; err != nil {
		return model.AnalysisResult{}, err
	}
	return model.AnalysisResult{Status: model.StatusOK, Explanation: "ok " + item.URI, Confidence: 0.8}, nil
}

func seedQueue(t *testing.T, uris ...string) *Queue {
	t.Helper()
	q := New(kv.NewMemory(), nil)
	base := time.UnixMilli(1_000)
	for i, uri := range uris {
		at := base.Add(time.Duration(i) * time.Millisecond)
		q.now = func() time.Time { return at }
		_, err := q.Enqueue(context.Background(), uri, model.TonePlayful)
		require.NoError(t, err)
	}
	q.now = time.Now
	return q
}

func remainingURIs(t *testing.T, q *Queue) []string {
	t.Helper()
	items, err := q.List(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.URI)
	}
	return out
}

func TestReplay_AllSucceed(t *testing.T) {
	q := seedQueue(t, "a", "b", "c")
	proc := &scriptedProcessor{}
	bus := eventbus.New()
	var published eventbus.QueueReplayedData
	require.NoError(t, bus.Subscribe(eventbus.EventQueueReplayed, func(d eventbus.QueueReplayedData) { published = d }))

	report, err := NewReplayer(q, proc, bus, nil).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, proc.calls, "oldest first")
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Remaining)
	assert.Empty(t, report.StoppedBy)
	assert.Empty(t, remainingURIs(t, q))
	assert.Equal(t, 3, published.Succeeded)
}

func TestReplay_StopsOnNetworkError(t *testing.T) {
	q := seedQueue(t, "a", "b", "c")
	proc := &scriptedProcessor{errs: map[string]error{
		"b": apperrors.NewNetworkError("POST", "/api/v1/interpret", fmt.Errorf("dial tcp: refused")),
	}}

	report, err := NewReplayer(q, proc, nil, nil).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StopNetwork, report.StoppedBy)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Remaining)
	assert.Equal(t, []string{"a", "b"}, proc.calls)
	assert.Equal(t, []string{"b", "c"}, remainingURIs(t, q))
}

func TestReplay_StopsOnUpstreamAndAuthErrors(t *testing.T) {
	for status, reason := range map[int]string{502: StopUpstream, 503: StopUpstream, 401: StopUnauthorized} {
		q := seedQueue(t, "a", "b")
		proc := &scriptedProcessor{errs: map[string]error{
			"a": apperrors.NewStatusError("POST", "/api/v1/interpret", status, nil),
		}}
		report, err := NewReplayer(q, proc, nil, nil).Replay(context.Background())
		require.NoError(t, err)
		assert.Equal(t, reason, report.StoppedBy, "status %d", status)
		assert.Equal(t, []string{"a", "b"}, remainingURIs(t, q), "status %d", status)
	}
}

func TestReplay_DropsPermanentFailures(t *testing.T) {
	q := seedQueue(t, "too-big", "invalid", "gone", "ok")
	proc := &scriptedProcessor{errs: map[string]error{
		"too-big": apperrors.NewStatusError("POST", "/api/v1/interpret", 413, nil),
		"invalid": apperrors.NewStatusError("POST", "/api/v1/interpret", 422, []byte(`{"detail":"bad"}`)),
		"gone":    apperrors.Wrap(apperrors.KindImage, "image.open", "cannot open photo", fs.ErrNotExist),
	}}

	report, err := NewReplayer(q, proc, nil, nil).Replay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Dropped)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, remainingURIs(t, q))
	require.Len(t, report.Outcomes, 4)
	assert.True(t, report.Outcomes[0].Dropped)
	assert.NotNil(t, report.Outcomes[3].Result)
}

func TestReplay_CancelledContext(t *testing.T) {
	q := seedQueue(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewReplayer(q, &scriptedProcessor{}, nil, nil).Replay(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCancelled, report.StoppedBy)
	assert.Equal(t, []string{"a"}, remainingURIs(t, q))
}

func TestReplay_ConcurrentCallsShareOneRun(t *testing.T) {
	q := seedQueue(t, "a")
	proc := &scriptedProcessor{gate: make(chan struct{})}
	r := NewReplayer(q, proc, nil, nil)

	var wg sync.WaitGroup
	reports := make([]Report, 2)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := r.Replay(context.Background())
			assert.NoError(t, err)
			reports[i] = rep
		}(i)
	}

	// wait until the first run is inside the processor, then give the
	// second caller time to join it
	require.Eventually(t, func() bool { return atomic.LoadInt32(&proc.count) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(proc.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.count))
	assert.Equal(t, 1, reports[0].Succeeded)
	assert.Equal(t, 1, reports[1].Succeeded)
}

func TestReplay_EmptyQueue(t *testing.T) {
	q := New(kv.NewMemory(), nil)
	report, err := NewReplayer(q, &scriptedProcessor{}, nil, nil).Replay(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
}
