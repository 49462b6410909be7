package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptbench/internal/api"
)

// fakeInvoker records concurrency and answers through respond.
type fakeInvoker struct {
	delay   time.Duration
	respond func(req api.CompletionRequest) (api.Completion, error)

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32

	mu        sync.Mutex
	maxTokens []int
}

func (f *fakeInvoker) Complete(ctx context.Context, req api.CompletionRequest) (api.Completion, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.maxTokens = append(f.maxTokens, req.MaxTokens)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return api.Completion{}, &api.CallError{Kind: api.KindTimeout, Err: ctx.Err()}
		}
	}
	if f.respond != nil {
		return f.respond(req)
	}
	return api.Completion{TokensUsed: 10}, nil
}

func items(n int) []WorkItem {
	out := make([]WorkItem, n)
	for i := range out {
		out[i] = WorkItem{Prompt: fmt.Sprintf("p%d", i), Model: "m", Run: 1}
	}
	return out
}

func TestNewDispatcher_NilInvoker(t *testing.T) {
	_, err := NewDispatcher(nil, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestDispatcher_Defaults(t *testing.T) {
	d, err := NewDispatcher(&fakeInvoker{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, d.opts.Concurrency)
	assert.Equal(t, DefaultMaxTokens, d.opts.MaxTokens)
	assert.Equal(t, DefaultTimeout, d.opts.Timeout)
}

func TestDispatcher_OneOutcomePerItem(t *testing.T) {
	for _, n := range []int{0, 1, 5, 6, 7, 12, 13} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			inv := &fakeInvoker{}
			d, err := NewDispatcher(inv, DefaultOptions())
			require.NoError(t, err)

			result := d.Run(context.Background(), items(n))
			assert.Len(t, result, n)
			assert.Equal(t, int32(n), inv.calls.Load())

			seen := map[string]bool{}
			for _, o := range result {
				seen[o.Prompt] = true
			}
			assert.Len(t, seen, n)
		})
	}
}

func TestDispatcher_ConcurrencyBound(t *testing.T) {
	tests := []struct {
		k, n int
	}{
		{k: 6, n: 20},
		{k: 6, n: 3},
		{k: 1, n: 4},
		{k: 4, n: 9},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("k=%d,n=%d", tt.k, tt.n), func(t *testing.T) {
			inv := &fakeInvoker{delay: 20 * time.Millisecond}
			d, err := NewDispatcher(inv, Options{Concurrency: tt.k})
			require.NoError(t, err)

			result := d.Run(context.Background(), items(tt.n))
			require.Len(t, result, tt.n)
			assert.LessOrEqual(t, int(inv.peak.Load()), tt.k)
			assert.Equal(t, int32(0), inv.inFlight.Load())
		})
	}
}

func TestDispatcher_WavesAreSequential(t *testing.T) {
	// every call of wave 1 must finish before any call of wave 2 starts
	inv := &fakeInvoker{delay: 10 * time.Millisecond}
	d, err := NewDispatcher(inv, Options{Concurrency: 2})
	require.NoError(t, err)

	result := d.Run(context.Background(), items(5))
	require.Len(t, result, 5)

	wave := func(prompt string) int {
		var i int
		fmt.Sscanf(prompt, "p%d", &i)
		return i / 2
	}
	for i := 1; i < len(result); i++ {
		assert.LessOrEqual(t, wave(result[i-1].Prompt), wave(result[i].Prompt))
	}
}

func TestDispatcher_MixedOutcomes(t *testing.T) {
	// 2 prompts x 3 runs where both run-2 calls are rejected with HTTP 429
	inv := &fakeInvoker{
		respond: func(req api.CompletionRequest) (api.Completion, error) {
			if req.Prompt == "fail" {
				return api.Completion{}, &api.CallError{Kind: api.KindStatus, StatusCode: 429}
			}
			return api.Completion{TokensUsed: 10}, nil
		},
	}
	work := []WorkItem{
		{Prompt: "A", Model: "m", Run: 1}, {Prompt: "fail", Model: "m", Run: 2}, {Prompt: "A", Model: "m", Run: 3},
		{Prompt: "B", Model: "m", Run: 1}, {Prompt: "fail", Model: "m", Run: 2}, {Prompt: "B", Model: "m", Run: 3},
	}

	d, err := NewDispatcher(inv, DefaultOptions())
	require.NoError(t, err)
	result := d.Run(context.Background(), work)
	require.Len(t, result, 6)

	var failures int
	for _, o := range result {
		if o.Success {
			assert.Empty(t, o.Error)
			assert.Equal(t, 10, o.TokensUsed)
			continue
		}
		failures++
		assert.Equal(t, "HTTP 429", o.Error)
		assert.Zero(t, o.Latency)
		assert.Zero(t, o.TokensUsed)
	}
	assert.Equal(t, 2, failures)
}

func TestDispatcher_Timeout(t *testing.T) {
	inv := &fakeInvoker{delay: time.Second}
	d, err := NewDispatcher(inv, Options{Concurrency: 3, Timeout: 30 * time.Millisecond})
	require.NoError(t, err)

	started := time.Now()
	result := d.Run(context.Background(), items(3))
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	require.Len(t, result, 3)
	for _, o := range result {
		assert.False(t, o.Success)
		assert.Contains(t, o.Error, "timeout")
	}
}

func TestDispatcher_LateSuccessCountsAsTimeout(t *testing.T) {
	inv := &fakeInvoker{
		respond: func(api.CompletionRequest) (api.Completion, error) {
			time.Sleep(40 * time.Millisecond)
			return api.Completion{TokensUsed: 5}, nil
		},
	}
	d, err := NewDispatcher(inv, Options{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)

	result := d.Run(context.Background(), items(1))
	require.Len(t, result, 1)
	assert.False(t, result[0].Success)
	assert.NotEmpty(t, result[0].Error)
}

func TestDispatcher_PanicBecomesFailure(t *testing.T) {
	inv := &fakeInvoker{
		respond: func(req api.CompletionRequest) (api.Completion, error) {
			if req.Prompt == "p1" {
				panic("boom")
			}
			return api.Completion{TokensUsed: 1}, nil
		},
	}
	d, err := NewDispatcher(inv, DefaultOptions())
	require.NoError(t, err)

	result := d.Run(context.Background(), items(3))
	require.Len(t, result, 3)

	for _, o := range result {
		if o.Prompt == "p1" {
			assert.False(t, o.Success)
			assert.Contains(t, o.Error, "boom")
		} else {
			assert.True(t, o.Success)
		}
	}
}

func TestDispatcher_EmptyErrorGetsDescription(t *testing.T) {
	inv := &fakeInvoker{
		respond: func(api.CompletionRequest) (api.Completion, error) {
			return api.Completion{}, errors.New("")
		},
	}
	d, err := NewDispatcher(inv, DefaultOptions())
	require.NoError(t, err)

	result := d.Run(context.Background(), items(1))
	require.Len(t, result, 1)
	assert.Equal(t, "unknown error", result[0].Error)
}

func TestDispatcher_PassesTokenBudget(t *testing.T) {
	inv := &fakeInvoker{}
	d, err := NewDispatcher(inv, DefaultOptions())
	require.NoError(t, err)

	d.Run(context.Background(), items(4))
	for _, mt := range inv.maxTokens {
		assert.Equal(t, 512, mt)
	}
}

func TestDispatcher_OnOutcome(t *testing.T) {
	var count atomic.Int32
	inv := &fakeInvoker{}
	d, err := NewDispatcher(inv, Options{Concurrency: 4, OnOutcome: func(Outcome) { count.Add(1) }})
	require.NoError(t, err)

	d.Run(context.Background(), items(10))
	assert.Equal(t, int32(10), count.Load())
}

func TestDispatcher_TimestampsAreUTC(t *testing.T) {
	d, err := NewDispatcher(&fakeInvoker{}, DefaultOptions())
	require.NoError(t, err)

	for _, o := range d.Run(context.Background(), items(2)) {
		assert.Equal(t, time.UTC, o.Timestamp.Location())
		assert.False(t, o.Timestamp.IsZero())
	}
}

func TestRunBatch(t *testing.T) {
	inv := &fakeInvoker{}
	result, err := RunBatch(context.Background(), inv, []string{"A", "B"}, "m", 3, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, result, 6)

	_, err = RunBatch(context.Background(), inv, nil, "m", 3, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = RunBatch(context.Background(), nil, []string{"A"}, "m", 1, DefaultOptions())
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestRunBatch_OneTimeoutStillReduces(t *testing.T) {
	var failedB atomic.Bool
	inv := &fakeInvoker{
		respond: func(req api.CompletionRequest) (api.Completion, error) {
			if req.Prompt == "B" && failedB.CompareAndSwap(false, true) {
				return api.Completion{}, &api.CallError{Kind: api.KindTimeout, Err: context.DeadlineExceeded}
			}
			return api.Completion{TokensUsed: 10}, nil
		},
	}

	result, err := RunBatch(context.Background(), inv, []string{"A", "B"}, "m", 2, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, result, 4)

	stats, err := Reduce(result)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRuns)
	assert.Equal(t, 3, stats.SuccessfulRuns)
	assert.Equal(t, 30, stats.TotalTokens)
	assert.Equal(t, 1, stats.FailedRuns())
}
