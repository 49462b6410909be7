package benchmark

import (
	"errors"

	"promptbench/internal/api"
)

var (
	// ErrInvalidInput is returned for bad batch parameters, before any call is made
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration is returned when the invoker is unusable before any call is attempted
	ErrConfiguration = api.ErrConfiguration

	// ErrNoSuccessfulRuns is returned by Reduce when no Outcome succeeded
	ErrNoSuccessfulRuns = errors.New("no successful runs")
)
