package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"

	"promptbench/internal/api"
	"promptbench/internal/benchmark"
	"promptbench/internal/catalog"
	"promptbench/internal/report"
)

func (b *Benchmark) readPrompts() ([]string, error) {
	f, err := os.Open(b.PromptFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", benchmark.ErrInvalidInput, err)
	}
	defer f.Close()

	prompts, err := benchmark.ParsePrompts(f)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: no valid prompts in %s", benchmark.ErrInvalidInput, b.PromptFile)
	}
	return prompts, nil
}

func (b *Benchmark) checkModel(ctx context.Context) error {
	models := catalog.New(catalog.Config{
		URL:        b.BaseURL + "/models",
		FreeOnly:   b.FreeOnly,
		HTTPClient: b.HTTPClient,
	})
	ok, err := models.Has(ctx, b.ModelName)
	if err != nil {
		return fmt.Errorf("checking model: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: model %s is not available", benchmark.ErrInvalidInput, b.ModelName)
	}
	return nil
}

// run dispatches the whole batch, drawing a progress bar on stderr, and returns the raw
// outcomes together with their summary
func (b *Benchmark) run(ctx context.Context) (benchmark.BatchResult, *report.Report, error) {
	prompts, err := b.readPrompts()
	if err != nil {
		return nil, nil, err
	}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:    b.BaseURL,
		APIKey:     b.ApiKey,
		HTTPClient: b.HTTPClient,
	})
	if err != nil {
		return nil, nil, err
	}

	if b.CheckModel {
		if err := b.checkModel(ctx); err != nil {
			return nil, nil, err
		}
	}

	bar := progressbar.NewOptions(len(prompts)*b.Runs,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(b.ModelName),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("calls"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	opts := b.Options
	opts.OnOutcome = func(benchmark.Outcome) {
		bar.Add(1)
	}

	result, err := benchmark.RunBatch(ctx, client, prompts, b.ModelName, b.Runs, opts)
	bar.Finish()
	fmt.Fprintf(os.Stderr, "\n")
	bar.Close()
	if err != nil {
		return nil, nil, err
	}

	path, err := report.NewCSVSink(b.ResultsDir).Write(result)
	if err != nil {
		log.Printf("Error saving results: %v", err)
	}

	rep, err := report.New(b.ModelName, len(prompts), b.Runs, result)
	if err != nil {
		return result, nil, err
	}
	rep.ResultsFile = path
	return result, rep, nil
}
