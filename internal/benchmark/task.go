package benchmark

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// WorkItem is one (prompt, run) unit of work. Run is 1-based and unique per prompt within a batch.
type WorkItem struct {
	Prompt string
	Model  string
	Run    int
}

// Outcome is the recorded result of executing exactly one WorkItem.
// Error is non-empty iff Success is false.
type Outcome struct {
	Prompt     string    `json:"prompt" yaml:"prompt"`
	Run        int       `json:"run" yaml:"run"`
	Latency    float64   `json:"latency" yaml:"latency"` // seconds, 0 when the call failed
	TokensUsed int       `json:"tokens_used" yaml:"tokens-used"`
	Success    bool      `json:"success" yaml:"success"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// BatchResult holds every Outcome of one dispatch. Outcomes are grouped by wave; order inside
// a wave is completion order.
type BatchResult []Outcome

// Expand turns prompts into len(prompts)*runs work items, prompt order outermost.
func Expand(prompts []string, model string, runs int) ([]WorkItem, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%w: no prompts", ErrInvalidInput)
	}
	if runs < 1 {
		return nil, fmt.Errorf("%w: runs must be at least 1, got %d", ErrInvalidInput, runs)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidInput)
	}

	items := make([]WorkItem, 0, len(prompts)*runs)
	for _, prompt := range prompts {
		for run := 1; run <= runs; run++ {
			items = append(items, WorkItem{Prompt: prompt, Model: model, Run: run})
		}
	}
	return items, nil
}

// ParsePrompts reads one prompt per line, trimming whitespace and dropping blank lines.
func ParsePrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	return prompts, nil
}
