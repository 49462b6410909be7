package server

import (
	"time"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ModelsResponse lists the model ids accepted by /benchmark and /generate
type ModelsResponse struct {
	Models []string `json:"models"`
}

// GenerateRequest is the body of POST /generate
type GenerateRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	Model     string `json:"model" binding:"required"`
	MaxTokens int    `json:"max_tokens" binding:"omitempty,min=1,max=4096"`
}

// GenerateResponse is returned by a non-streaming POST /generate
type GenerateResponse struct {
	Response       string  `json:"response"`
	TokensUsed     int     `json:"tokens_used"`
	LatencySeconds float64 `json:"latency_seconds"`
}

// NoSuccessfulRunsResponse is returned in place of statistics when every call failed
type NoSuccessfulRunsResponse struct {
	Error          string `json:"error"`
	TotalRuns      int    `json:"total_runs"`
	SuccessfulRuns int    `json:"successful_runs"`
}

// StreamChunk is one SSE frame of a streamed generation
type StreamChunk struct {
	Content string `json:"content"`
}
