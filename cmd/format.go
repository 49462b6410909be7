package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"promptbench/internal/benchmark"
	"promptbench/internal/report"
)

func validFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", "table", "json", "yaml", "yml":
		return true
	}
	return false
}

// writeReport prints the report; table output also lists why calls failed
func writeReport(w io.Writer, rep *report.Report, result benchmark.BatchResult, format string) error {
	output, err := rep.Render(format)
	if err != nil {
		return fmt.Errorf("error formatting benchmark result: %w", err)
	}
	fmt.Fprintln(w, strings.TrimRight(output, "\n"))

	if f := strings.ToLower(format); f == "" || f == "table" {
		if summary := failureSummary(result); summary != "" {
			fmt.Fprintf(w, "\nFailures:\n%s", summary)
		}
	}
	return nil
}

// failureSummary counts failed outcomes per error message, most frequent first
func failureSummary(result benchmark.BatchResult) string {
	counts := map[string]int{}
	for _, outcome := range result {
		if !outcome.Success {
			counts[outcome.Error]++
		}
	}
	if len(counts) == 0 {
		return ""
	}

	messages := make([]string, 0, len(counts))
	for msg := range counts {
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		if counts[messages[i]] != counts[messages[j]] {
			return counts[messages[i]] > counts[messages[j]]
		}
		return messages[i] < messages[j]
	})

	var sb strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&sb, "  %4d  %s\n", counts[msg], msg)
	}
	return sb.String()
}
