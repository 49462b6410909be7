package main

import (
	"net/http"

	"promptbench/internal/benchmark"
)

type Benchmark struct {
	BaseURL    string
	ApiKey     string
	ModelName  string
	PromptFile string
	Runs       int
	Options    benchmark.Options
	ResultsDir string

	// CheckModel validates ModelName against the model catalog before dispatching
	CheckModel bool
	FreeOnly   bool

	HTTPClient *http.Client
}
