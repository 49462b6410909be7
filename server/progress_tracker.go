package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"promptbench/internal/benchmark"
)

// ProgressTracker counts the outcomes of one job and broadcasts progress, throttled to
// one message per interval. The final outcome is always broadcast.
type ProgressTracker struct {
	JobID     string
	Model     string
	StartTime time.Time
	Total     int

	completed   int
	succeeded   int
	status      string
	broadcaster Broadcaster
	throttle    *rate.Limiter
	mutex       sync.Mutex
}

// NewProgressTracker creates a tracker for a job expecting total outcomes
func NewProgressTracker(jobID, model string, total int, broadcaster Broadcaster, interval time.Duration) *ProgressTracker {
	return &ProgressTracker{
		JobID:       jobID,
		Model:       model,
		StartTime:   time.Now(),
		Total:       total,
		status:      "running",
		broadcaster: broadcaster,
		throttle:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Record counts one outcome and returns the updated progress
func (pt *ProgressTracker) Record(outcome benchmark.Outcome) ProgressUpdate {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.completed++
	if outcome.Success {
		pt.succeeded++
	}

	progress := pt.snapshot()
	if pt.completed == pt.Total || pt.throttle.Allow() {
		pt.broadcast(NewProgressMessage(pt.JobID, progress))
	}
	return progress
}

// GetProgress returns the current progress information
func (pt *ProgressTracker) GetProgress() ProgressUpdate {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	return pt.snapshot()
}

func (pt *ProgressTracker) snapshot() ProgressUpdate {
	elapsed := time.Since(pt.StartTime).Seconds()

	var progress float64
	if pt.Total > 0 {
		progress = float64(pt.completed) / float64(pt.Total) * 100
	}

	var estimatedRemaining float64
	if progress > 0 {
		estimatedRemaining = (elapsed / progress) * (100 - progress)
	}

	return ProgressUpdate{
		JobID:                  pt.JobID,
		Status:                 pt.status,
		Model:                  pt.Model,
		Completed:              pt.completed,
		Total:                  pt.Total,
		Succeeded:              pt.succeeded,
		Failed:                 pt.completed - pt.succeeded,
		Progress:               progress,
		ElapsedTime:            elapsed,
		EstimatedTimeRemaining: estimatedRemaining,
	}
}

// Complete marks the job as completed and broadcasts the final results
func (pt *ProgressTracker) Complete(results interface{}) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.status = "completed"
	pt.broadcast(NewCompletionMessage(pt.JobID, CompletionMessage{
		JobID:     pt.JobID,
		Status:    pt.status,
		Results:   results,
		Duration:  time.Since(pt.StartTime).Seconds(),
		Completed: time.Now().UTC(),
	}))
}

// Fail marks the job as failed and broadcasts the error
func (pt *ProgressTracker) Fail(errorMsg string, details string) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.status = "failed"
	pt.broadcast(NewErrorMessage(pt.JobID, ErrorMessage{
		JobID:   pt.JobID,
		Error:   "Benchmark failed",
		Message: errorMsg,
		Details: details,
	}))
}

func (pt *ProgressTracker) broadcast(message *WebSocketMessage) {
	if pt.broadcaster == nil {
		return
	}
	data, err := message.ToJSON()
	if err != nil {
		AppLogger.ErrorWithContext(&LogContext{JobID: pt.JobID}, "Failed to marshal %s message: %v", message.Type, err)
		return
	}
	pt.broadcaster.BroadcastMessage(data)
}
