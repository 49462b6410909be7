package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptbench/internal/benchmark"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []WebSocketMessage
}

func (b *recordingBroadcaster) BroadcastMessage(data []byte) {
	msg, err := FromJSON(data)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	b.messages = append(b.messages, *msg)
	b.mu.Unlock()
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.messages))
	for i, m := range b.messages {
		types[i] = m.Type
	}
	return types
}

func TestProgressTracker_ThrottlesButAlwaysSendsLast(t *testing.T) {
	rec := &recordingBroadcaster{}
	tracker := NewProgressTracker("job-1", "m", 4, rec, time.Hour)

	tracker.Record(benchmark.Outcome{Success: true})
	tracker.Record(benchmark.Outcome{Success: false, Error: "HTTP 500"})
	tracker.Record(benchmark.Outcome{Success: true})
	last := tracker.Record(benchmark.Outcome{Success: true})

	// the first record spends the burst, the fourth is final
	assert.Equal(t, []string{MessageTypeProgress, MessageTypeProgress}, rec.types())

	assert.Equal(t, 4, last.Completed)
	assert.Equal(t, 3, last.Succeeded)
	assert.Equal(t, 1, last.Failed)
	assert.InDelta(t, 100.0, last.Progress, 1e-9)
	assert.Equal(t, 0.0, last.EstimatedTimeRemaining)
}

func TestProgressTracker_CompleteAndFail(t *testing.T) {
	rec := &recordingBroadcaster{}
	tracker := NewProgressTracker("job-2", "m", 1, rec, time.Millisecond)

	tracker.Complete(map[string]int{"total_runs": 1})
	assert.Equal(t, "completed", tracker.GetProgress().Status)

	tracker.Fail("boom", "details")
	assert.Equal(t, "failed", tracker.GetProgress().Status)

	require.Equal(t, []string{MessageTypeComplete, MessageTypeError}, rec.types())
	assert.Equal(t, "job-2", rec.messages[0].JobID)
}

func TestProgressTracker_NilBroadcaster(t *testing.T) {
	tracker := NewProgressTracker("job-3", "m", 2, nil, time.Millisecond)

	assert.NotPanics(t, func() {
		tracker.Record(benchmark.Outcome{Success: true})
		tracker.Complete(nil)
	})
	assert.Equal(t, 1, tracker.GetProgress().Completed)
}
