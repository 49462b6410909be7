package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"promptbench/internal/api"
	"promptbench/internal/benchmark"
	"promptbench/internal/report"
)

// StartBenchmark validates the request like Benchmark, then runs the batch in the background
func (h *Handlers) StartBenchmark(c *gin.Context) {
	in, ok := h.parseBenchmarkInput(c)
	if !ok {
		return
	}
	client, ok := h.newClient(c)
	if !ok {
		return
	}

	jobID := h.svc.Jobs.CreateJob(in.Model, len(in.Prompts), in.Runs)
	AppLogger.InfoWithContext(&LogContext{JobID: jobID, RequestID: c.GetString(requestIDKey)}, "Created job for asynchronous benchmark")

	go h.runBenchmarkJob(jobID, client, in)

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":   jobID,
		"message": "Benchmark job started successfully",
		"status":  "started",
		"sse": gin.H{
			"url":     "/jobs/" + jobID + "/stream",
			"message": "Connect to SSE endpoint for real-time progress updates",
		},
		"ws": gin.H{
			"url": "/ws",
		},
	})
}

// runBenchmarkJob executes a job to completion, reporting progress over SSE and websocket
func (h *Handlers) runBenchmarkJob(jobID string, client api.Invoker, in benchmarkInput) {
	logCtx := &LogContext{JobID: jobID, Model: in.Model, Operation: "benchmark"}
	total := len(in.Prompts) * in.Runs

	var broadcaster Broadcaster
	if h.svc.Hub != nil {
		broadcaster = h.svc.Hub
	}
	tracker := NewProgressTracker(jobID, in.Model, total, broadcaster, h.svc.ProgressInterval)

	opts := h.svc.Settings.DispatchOptions()
	opts.OnOutcome = func(outcome benchmark.Outcome) {
		progress := tracker.Record(outcome)
		h.svc.Jobs.UpdateProgress(jobID, progress.Completed, progress.Total)
	}

	result, err := benchmark.RunBatch(context.Background(), client, in.Prompts, in.Model, in.Runs, opts)
	if err != nil {
		AppLogger.ErrorWithContext(logCtx, "Benchmark failed: %v", err)
		h.svc.Jobs.FailJob(jobID, err.Error())
		tracker.Fail(err.Error(), "")
		return
	}

	path := h.writeResults(logCtx, result)

	rep, err := report.New(in.Model, len(in.Prompts), in.Runs, result)
	if err != nil {
		AppLogger.ErrorWithContext(logCtx, "Failed to summarize results: %v", err)
		h.svc.Jobs.FailJob(jobID, err.Error())
		tracker.Fail(err.Error(), "")
		return
	}
	rep.ResultsFile = path

	message := "Benchmark completed successfully"
	if rep.NoSuccessfulRuns() {
		message = report.NoSuccessfulRunsMessage
	}
	h.svc.Jobs.CompleteJob(jobID, rep, message)
	tracker.Complete(rep)
	AppLogger.InfoWithContext(logCtx, "Benchmark job finished: %s", message)
}

// GetJobStatus returns the current status of a job
func (h *Handlers) GetJobStatus(c *gin.Context) {
	job, exists := h.svc.Jobs.GetJob(c.Param("jobId"))
	if !exists {
		abortWithError(c, http.StatusNotFound, "Not Found", "Job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs returns all jobs
func (h *Handlers) ListJobs(c *gin.Context) {
	jobs := h.svc.Jobs.ListJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
