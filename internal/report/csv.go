package report

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"promptbench/internal/benchmark"
)

// ResultsFileName is the file written inside the results directory for every batch.
const ResultsFileName = "benchmark_results.csv"

// DefaultResultsDir is used when no directory is configured.
const DefaultResultsDir = "benchmark_results"

var csvHeader = []string{"timestamp", "prompt", "run", "latency", "tokens_used", "success", "error"}

// CSVSink persists a BatchResult as one CSV row per Outcome.
type CSVSink struct {
	Dir string
}

// NewCSVSink returns a sink writing under dir, or DefaultResultsDir when dir is empty.
func NewCSVSink(dir string) *CSVSink {
	if dir == "" {
		dir = DefaultResultsDir
	}
	return &CSVSink{Dir: dir}
}

// Path is the file the sink writes to.
func (s *CSVSink) Path() string {
	return filepath.Join(s.Dir, ResultsFileName)
}

// Write replaces the results file with the rows of result, in BatchResult order.
func (s *CSVSink) Write(result benchmark.BatchResult) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	path := s.Path()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	for _, o := range result {
		if err := w.Write(row(o)); err != nil {
			return "", fmt.Errorf("writing row for run %d: %w", o.Run, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing results: %w", err)
	}

	log.Printf("💾 Wrote %d outcomes to %s", len(result), path)
	return path, nil
}

func row(o benchmark.Outcome) []string {
	errCell := ""
	if !o.Success {
		errCell = o.Error
	}
	return []string{
		o.Timestamp.UTC().Format(time.RFC3339Nano),
		o.Prompt,
		strconv.Itoa(o.Run),
		strconv.FormatFloat(o.Latency, 'f', -1, 64),
		strconv.Itoa(o.TokensUsed),
		strconv.FormatBool(o.Success),
		errCell,
	}
}
