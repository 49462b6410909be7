package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"promptbench/internal/api"
)

const (
	DefaultConcurrency = 6
	DefaultMaxTokens   = 512
	DefaultTimeout     = 30 * time.Second

	// MaxRuns bounds the runs per prompt accepted from the HTTP and CLI surfaces
	MaxRuns = 20
)

// Options configures a Dispatcher. Zero values fall back to the defaults.
type Options struct {
	Concurrency int           // K: maximum calls in flight
	MaxTokens   int           // token budget sent with every call
	Timeout     time.Duration // wall-clock limit per call

	// OnOutcome is called once per Outcome as it is recorded. Calls are serialized.
	OnOutcome func(Outcome)
}

// DefaultOptions returns K=6, a 512 token budget and a 30s per-call timeout.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultTimeout,
	}
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if o.MaxTokens < 1 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Dispatcher executes work items against an Invoker in waves of at most K concurrent calls.
type Dispatcher struct {
	invoker api.Invoker
	opts    Options
}

// NewDispatcher fails with ErrConfiguration when there is no invoker to call.
func NewDispatcher(invoker api.Invoker, opts Options) (*Dispatcher, error) {
	if invoker == nil {
		return nil, fmt.Errorf("%w: no completion invoker", ErrConfiguration)
	}
	return &Dispatcher{invoker: invoker, opts: opts.withDefaults()}, nil
}

// Concurrency returns the effective K.
func (d *Dispatcher) Concurrency() int {
	return d.opts.Concurrency
}

// Run executes every item and returns exactly one Outcome per item. Items are dispatched in waves
// of K; wave N+1 starts only after every Outcome of wave N is recorded. Per-call failures become
// failed Outcomes and never abort the batch.
func (d *Dispatcher) Run(ctx context.Context, items []WorkItem) BatchResult {
	k := d.opts.Concurrency
	result := make(BatchResult, 0, len(items))
	var mu sync.Mutex

	for start := 0; start < len(items); start += k {
		end := min(start+k, len(items))

		var g errgroup.Group
		for _, item := range items[start:end] {
			g.Go(func() error {
				outcome := d.execute(ctx, item)

				mu.Lock()
				defer mu.Unlock()
				result = append(result, outcome)
				if d.opts.OnOutcome != nil {
					d.opts.OnOutcome(outcome)
				}
				return nil
			})
		}
		// goroutines always return nil so the whole wave is collected
		_ = g.Wait()
	}

	return result
}

// execute performs one call under its own timeout.
func (d *Dispatcher) execute(ctx context.Context, item WorkItem) (outcome Outcome) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			outcome = failed(item, fmt.Errorf("invoker panic: %v", r))
		}
	}()

	start := time.Now()
	completion, err := d.invoker.Complete(callCtx, api.CompletionRequest{
		Model:     item.Model,
		Prompt:    item.Prompt,
		MaxTokens: d.opts.MaxTokens,
	})
	latency := time.Since(start)

	if err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = &api.CallError{Kind: api.KindTimeout, Err: callCtx.Err()}
	}
	if err != nil {
		log.Printf("❌ Run %d failed for prompt %.40q: %v", item.Run, item.Prompt, err)
		return failed(item, err)
	}

	return Outcome{
		Prompt:     item.Prompt,
		Run:        item.Run,
		Latency:    latency.Seconds(),
		TokensUsed: completion.TokensUsed,
		Success:    true,
		Timestamp:  time.Now().UTC(),
	}
}

func failed(item WorkItem, err error) Outcome {
	description := err.Error()
	if description == "" {
		description = "unknown error"
	}
	return Outcome{
		Prompt:    item.Prompt,
		Run:       item.Run,
		Success:   false,
		Error:     description,
		Timestamp: time.Now().UTC(),
	}
}

// RunBatch expands prompts into work items and dispatches them.
func RunBatch(ctx context.Context, invoker api.Invoker, prompts []string, model string, runs int, opts Options) (BatchResult, error) {
	items, err := Expand(prompts, model, runs)
	if err != nil {
		return nil, err
	}

	dispatcher, err := NewDispatcher(invoker, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("🚀 Dispatching %d calls for model %s (%d prompts x %d runs, concurrency %d)",
		len(items), model, len(prompts), runs, dispatcher.Concurrency())
	return dispatcher.Run(ctx, items), nil
}
