package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"promptbench/internal/api"
	"promptbench/internal/benchmark"
	"promptbench/internal/report"
)

const Version = "1.0.0"

// Handlers serves the HTTP API on top of Services
type Handlers struct {
	svc *Services
}

func NewHandlers(svc *Services) *Handlers {
	return &Handlers{svc: svc}
}

// benchmarkInput is a validated benchmark request
type benchmarkInput struct {
	Model   string
	Prompts []string
	Runs    int
}

func abortWithError(c *gin.Context, status int, title, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   title,
		Message: message,
		Code:    status,
	})
}

// RootHandler describes the API
func RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Prompt Benchmark API",
		"version": Version,
		"status":  "ok",
		"endpoints": gin.H{
			"health":    "GET /health",
			"models":    "GET /models",
			"generate":  "POST /generate[?stream=true]",
			"benchmark": "POST /benchmark?model=&runs=",
			"async":     "POST /benchmark/async?model=&runs=",
			"jobs":      "GET /jobs, GET /jobs/:jobId, GET /jobs/:jobId/stream",
			"websocket": "GET /ws",
		},
	})
}

// HealthHandler returns server health status
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC(),
	})
}

// Models lists the model ids accepted by the benchmark and generate endpoints
func (h *Handlers) Models(c *gin.Context) {
	names, err := h.svc.Catalog.Names(c.Request.Context())
	if err != nil {
		AppLogger.ErrorWithContext(requestLogContext(c, "", "models"), "Error fetching models: %v", err)
		abortWithError(c, http.StatusBadGateway, "Bad Gateway", fmt.Sprintf("Error fetching models: %v", err))
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, ModelsResponse{Models: names})
}

// requireModel aborts with 400 for an unknown model and 503 when the catalog cannot be read
func (h *Handlers) requireModel(c *gin.Context, model string) bool {
	ok, err := h.svc.Catalog.Has(c.Request.Context(), model)
	if err != nil {
		AppLogger.ErrorWithContext(requestLogContext(c, model, "validate"), "Model catalog unavailable: %v", err)
		abortWithError(c, http.StatusServiceUnavailable, "Service Unavailable", fmt.Sprintf("Cannot validate model: %v", err))
		return false
	}
	if !ok {
		AppLogger.WarnWithContext(requestLogContext(c, model, "validate"), "Model is not available")
		abortWithError(c, http.StatusBadRequest, "Bad Request",
			fmt.Sprintf("Model %s is not available. Use GET /models to see available models.", model))
		return false
	}
	return true
}

// newClient aborts with 500 when no completion client can be built
func (h *Handlers) newClient(c *gin.Context) (CompletionClient, bool) {
	client, err := h.svc.NewClient()
	if err != nil {
		AppLogger.ErrorWithContext(requestLogContext(c, "", "client"), "Cannot create completion client: %v", err)
		title := "Internal Server Error"
		if errors.Is(err, api.ErrConfiguration) {
			title = "Configuration Error"
		}
		abortWithError(c, http.StatusInternalServerError, title, err.Error())
		return nil, false
	}
	return client, true
}

// parseBenchmarkInput validates model, prompt file and runs, in that order
func (h *Handlers) parseBenchmarkInput(c *gin.Context) (benchmarkInput, bool) {
	in := benchmarkInput{Model: c.DefaultQuery("model", DefaultModel)}
	if !h.requireModel(c, in.Model) {
		return in, false
	}

	prompts, err := readPromptFile(c)
	if err != nil {
		AppLogger.WarnWithContext(requestLogContext(c, in.Model, "benchmark"), "Rejected prompt file: %v", err)
		abortWithError(c, http.StatusBadRequest, "Bad Request", err.Error())
		return in, false
	}
	if len(prompts) == 0 {
		AppLogger.WarnWithContext(requestLogContext(c, in.Model, "benchmark"), "No prompts in uploaded file")
		abortWithError(c, http.StatusBadRequest, "Bad Request", "No valid prompts in file")
		return in, false
	}
	in.Prompts = prompts

	runs, err := strconv.Atoi(c.DefaultQuery("runs", strconv.Itoa(DefaultRuns)))
	if err != nil || runs < 1 || runs > MaxRuns {
		abortWithError(c, http.StatusBadRequest, "Bad Request", fmt.Sprintf("runs must be an integer between 1 and %d", MaxRuns))
		return in, false
	}
	in.Runs = runs

	return in, true
}

func readPromptFile(c *gin.Context) ([]string, error) {
	header, err := c.FormFile("prompt_file")
	if err != nil {
		return nil, fmt.Errorf("prompt_file is required: %w", err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("cannot open prompt_file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("cannot read prompt_file: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, errors.New("prompt_file must be UTF-8 text")
	}
	return benchmark.ParsePrompts(bytes.NewReader(content))
}

// writeResults persists the batch, logging rather than failing when the sink is unavailable
func (h *Handlers) writeResults(logCtx *LogContext, result benchmark.BatchResult) string {
	if h.svc.Sink == nil {
		return ""
	}
	path, err := h.svc.Sink.Write(result)
	if err != nil {
		AppLogger.ErrorWithContext(logCtx, "Failed to write benchmark results: %v", err)
		return ""
	}
	return path
}

// Benchmark runs a batch synchronously and returns its statistics
func (h *Handlers) Benchmark(c *gin.Context) {
	in, ok := h.parseBenchmarkInput(c)
	if !ok {
		return
	}
	client, ok := h.newClient(c)
	if !ok {
		return
	}

	logCtx := requestLogContext(c, in.Model, "benchmark")
	AppLogger.InfoWithContext(logCtx, "Starting benchmark: %d prompts x %d runs", len(in.Prompts), in.Runs)

	// a disconnecting client does not cancel the batch
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := benchmark.RunBatch(ctx, client, in.Prompts, in.Model, in.Runs, h.svc.Settings.DispatchOptions())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, benchmark.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		AppLogger.ErrorWithContext(logCtx, "Benchmark failed: %v", err)
		abortWithError(c, status, http.StatusText(status), err.Error())
		return
	}

	h.writeResults(logCtx, result)

	stats, err := benchmark.Reduce(result)
	if errors.Is(err, benchmark.ErrNoSuccessfulRuns) {
		AppLogger.WarnWithContext(logCtx, "No successful runs out of %d", stats.TotalRuns)
		c.JSON(http.StatusOK, NoSuccessfulRunsResponse{
			Error:          report.NoSuccessfulRunsMessage,
			TotalRuns:      stats.TotalRuns,
			SuccessfulRuns: 0,
		})
		return
	}

	AppLogger.WithContext(logCtx).InfoWithFields("Benchmark completed", map[string]interface{}{
		"total":     stats.TotalRuns,
		"succeeded": stats.SuccessfulRuns,
		"avg":       stats.AvgLatency,
	})
	c.JSON(http.StatusOK, stats)
}

// Generate proxies one completion, streamed as SSE when ?stream=true
func (h *Handlers) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Invalid request payload: %v", err))
		return
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = h.svc.Settings.MaxTokens
	}

	if !h.requireModel(c, req.Model) {
		return
	}
	client, ok := h.newClient(c)
	if !ok {
		return
	}

	stream, _ := strconv.ParseBool(c.Query("stream"))
	logCtx := requestLogContext(c, req.Model, "generate")
	AppLogger.InfoWithContext(logCtx, "Generating text (stream: %t)", stream)

	callReq := api.CompletionRequest{Model: req.Model, Prompt: req.Prompt, MaxTokens: req.MaxTokens}
	if stream {
		streamGeneration(c, client, callReq, h.svc.Settings.RequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.svc.Settings.RequestTimeout)
	defer cancel()

	start := time.Now()
	completion, err := client.Complete(ctx, callReq)
	latency := time.Since(start)
	if err != nil {
		status, title := upstreamErrorStatus(err)
		AppLogger.ErrorWithContext(logCtx, "Generation failed: %v", err)
		abortWithError(c, status, title, fmt.Sprintf("OpenRouter API error: %v", err))
		return
	}

	AppLogger.InfoWithContext(logCtx, "Successfully generated text, tokens used: %d", completion.TokensUsed)
	c.JSON(http.StatusOK, GenerateResponse{
		Response:       completion.Text,
		TokensUsed:     completion.TokensUsed,
		LatencySeconds: latency.Seconds(),
	})
}

// upstreamErrorStatus maps a non-2xx upstream answer to 502 and anything else to 500
func upstreamErrorStatus(err error) (int, string) {
	var callErr *api.CallError
	if errors.As(err, &callErr) && callErr.Kind == api.KindStatus {
		return http.StatusBadGateway, "Bad Gateway"
	}
	return http.StatusInternalServerError, "Internal Server Error"
}
