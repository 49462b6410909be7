package benchmark

import (
	"math"
	"sort"
)

// Statistics aggregates the successful Outcomes of a BatchResult.
type Statistics struct {
	TotalRuns      int     `json:"total_runs" yaml:"total-runs"`
	SuccessfulRuns int     `json:"successful_runs" yaml:"successful-runs"`
	AvgLatency     float64 `json:"avg" yaml:"avg"`
	MinLatency     float64 `json:"min" yaml:"min"`
	MaxLatency     float64 `json:"max" yaml:"max"`
	StdDev         float64 `json:"std_dev" yaml:"std-dev"`
	TotalTokens    int     `json:"total_tokens" yaml:"total-tokens"`
}

// FailedRuns is the number of Outcomes that did not succeed.
func (s Statistics) FailedRuns() int {
	return s.TotalRuns - s.SuccessfulRuns
}

// Reduce computes Statistics over the successful Outcomes. It returns ErrNoSuccessfulRuns when
// none succeeded. The result does not depend on Outcome order.
func Reduce(result BatchResult) (Statistics, error) {
	var latencies []float64
	tokens := 0
	for _, outcome := range result {
		if !outcome.Success {
			continue
		}
		latencies = append(latencies, outcome.Latency)
		tokens += outcome.TokensUsed
	}

	if len(latencies) == 0 {
		return Statistics{TotalRuns: len(result)}, ErrNoSuccessfulRuns
	}

	// sorted so float summation is independent of completion order
	sort.Float64s(latencies)

	stats := Statistics{
		TotalRuns:      len(result),
		SuccessfulRuns: len(latencies),
		MinLatency:     latencies[0],
		MaxLatency:     latencies[len(latencies)-1],
		TotalTokens:    tokens,
	}
	stats.AvgLatency = mean(latencies)
	stats.StdDev = sampleStdDev(latencies, stats.AvgLatency)
	return stats, nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses n-1; a single value has a deviation of 0.
func sampleStdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sq := 0.0
	for _, v := range values {
		d := v - avg
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
