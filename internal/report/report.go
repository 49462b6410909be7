package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"go.yaml.in/yaml/v4"

	"promptbench/internal/benchmark"
)

// NoSuccessfulRunsMessage is reported in place of statistics when every call failed.
const NoSuccessfulRunsMessage = "No successful runs"

// Report summarizes one finished batch for display.
// Statistics is nil when no call succeeded; Error then carries the condition.
type Report struct {
	Model          string                `json:"model" yaml:"model"`
	Prompts        int                   `json:"prompts" yaml:"prompts"`
	RunsPerPrompt  int                   `json:"runs_per_prompt" yaml:"runs-per-prompt"`
	TotalRuns      int                   `json:"total_runs" yaml:"total-runs"`
	SuccessfulRuns int                   `json:"successful_runs" yaml:"successful-runs"`
	Statistics     *benchmark.Statistics `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Error          string                `json:"error,omitempty" yaml:"error,omitempty"`
	ResultsFile    string                `json:"results_file,omitempty" yaml:"results-file,omitempty"`
}

// New reduces result into a Report. A batch with no successes is flagged through Error
// rather than failing.
func New(model string, prompts, runs int, result benchmark.BatchResult) (*Report, error) {
	stats, err := benchmark.Reduce(result)
	r := &Report{
		Model:          model,
		Prompts:        prompts,
		RunsPerPrompt:  runs,
		TotalRuns:      stats.TotalRuns,
		SuccessfulRuns: stats.SuccessfulRuns,
	}
	if errors.Is(err, benchmark.ErrNoSuccessfulRuns) {
		r.Error = NoSuccessfulRunsMessage
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	r.Statistics = &stats
	return r, nil
}

// NoSuccessfulRuns reports whether the batch produced no successful Outcome.
func (r *Report) NoSuccessfulRuns() bool {
	return r.Error != ""
}

func (r *Report) Json() (string, error) {
	prettyJSON, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}
	return string(prettyJSON), nil
}

func (r *Report) Yaml() (string, error) {
	yamlData, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("error marshalling yaml: %w", err)
	}
	return string(yamlData), nil
}

// Table renders the report as an aligned text table.
func (r *Report) Table() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Model: %s\n", r.Model)
	fmt.Fprintf(&sb, "Prompts: %d, runs per prompt: %d\n\n", r.Prompts, r.RunsPerPrompt)

	if r.NoSuccessfulRuns() {
		fmt.Fprintf(&sb, "%s (%d of %d runs failed)\n", r.Error, r.TotalRuns, r.TotalRuns)
	} else {
		s := r.Statistics
		tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Runs\tSucceeded\tAvg (s)\tMin (s)\tMax (s)\tStd dev (s)\tTokens")
		fmt.Fprintln(tw, "----\t---------\t-------\t-------\t-------\t-----------\t------")
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%d\n",
			s.TotalRuns, s.SuccessfulRuns, s.AvgLatency, s.MinLatency, s.MaxLatency, s.StdDev, s.TotalTokens)
		tw.Flush()
	}

	if r.ResultsFile != "" {
		fmt.Fprintf(&sb, "\nResults written to %s\n", r.ResultsFile)
	}
	return sb.String()
}

// Render formats the report as json, yaml or the default table.
func (r *Report) Render(format string) (string, error) {
	switch strings.ToLower(format) {
	case "json":
		return r.Json()
	case "yaml", "yml":
		return r.Yaml()
	case "", "table":
		return r.Table(), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}
