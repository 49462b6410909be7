package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DefaultJobRetention is how long finished jobs are kept before CleanupOldJobs drops them
const DefaultJobRetention = time.Hour

// Job is an asynchronous benchmark batch
type Job struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	Model       string      `json:"model"`
	Prompts     int         `json:"prompts"`
	Runs        int         `json:"runs"`
	Completed   int         `json:"completed"`
	Total       int         `json:"total"`
	Progress    int         `json:"progress"` // 0-100
	Message     string      `json:"message"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// Finished reports whether the job reached a terminal status
func (job *Job) Finished() bool {
	return job.Status == JobStatusCompleted || job.Status == JobStatusFailed
}

// ToSSEMessage formats the job as an SSE data frame
func (job *Job) ToSSEMessage() string {
	data, err := json.Marshal(job)
	if err != nil {
		AppLogger.ErrorWithContext(&LogContext{JobID: job.ID}, "Failed to marshal job to JSON: %v", err)
		return fmt.Sprintf("data: {\"id\":%q,\"status\":%q,\"error\":\"JSON marshal failed\"}\n\n", job.ID, job.Status)
	}
	return fmt.Sprintf("data: %s\n\n", data)
}

// JobManager tracks asynchronous jobs and notifies SSE listeners of their changes.
// Listeners receive copies, never the stored job.
type JobManager struct {
	jobs      map[string]*Job
	listeners map[string][]chan Job
	mutex     sync.RWMutex
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		listeners: make(map[string][]chan Job),
	}
}

// CreateJob registers a running job and returns its ID
func (jm *JobManager) CreateJob(model string, prompts, runs int) string {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	jobID := uuid.New().String()
	jm.jobs[jobID] = &Job{
		ID:        jobID,
		Status:    JobStatusRunning,
		Model:     model,
		Prompts:   prompts,
		Runs:      runs,
		Total:     prompts * runs,
		Message:   "Starting benchmark...",
		CreatedAt: time.Now().UTC(),
	}

	AppLogger.InfoWithFields("Job created", map[string]interface{}{
		"jobId": jobID,
		"model": model,
		"total": prompts * runs,
	})
	return jobID
}

// GetJob returns a copy of the job
func (jm *JobManager) GetJob(jobID string) (Job, bool) {
	jm.mutex.RLock()
	defer jm.mutex.RUnlock()

	job, exists := jm.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// ListJobs returns copies of all jobs, newest first
func (jm *JobManager) ListJobs() []Job {
	jm.mutex.RLock()
	defer jm.mutex.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// UpdateProgress records how many outcomes of the job are done
func (jm *JobManager) UpdateProgress(jobID string, completed, total int) {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	job, exists := jm.jobs[jobID]
	if !exists {
		AppLogger.ErrorWithContext(&LogContext{JobID: jobID}, "Job not found for progress update")
		return
	}

	job.Completed = completed
	job.Total = total
	if total > 0 {
		job.Progress = completed * 100 / total
	}
	job.Message = fmt.Sprintf("%d of %d calls finished", completed, total)

	AppLogger.WithContext(&LogContext{JobID: jobID}).Debug("Job progress updated: %d%%", job.Progress)
	jm.broadcastUpdate(job)
}

// CompleteJob marks a job as completed with results
func (jm *JobManager) CompleteJob(jobID string, result interface{}, message string) {
	jm.finish(jobID, func(job *Job) {
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = message
		job.Result = result
	})
}

// FailJob marks a job as failed with error message
func (jm *JobManager) FailJob(jobID string, errorMsg string) {
	jm.finish(jobID, func(job *Job) {
		job.Status = JobStatusFailed
		job.Message = "Benchmark failed"
		job.Error = errorMsg
	})
}

func (jm *JobManager) finish(jobID string, apply func(job *Job)) {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	job, exists := jm.jobs[jobID]
	if !exists {
		AppLogger.ErrorWithContext(&LogContext{JobID: jobID}, "Job not found for completion")
		return
	}

	apply(job)
	now := time.Now().UTC()
	job.CompletedAt = &now

	AppLogger.InfoWithFields("Job finished", map[string]interface{}{
		"jobId":  jobID,
		"status": job.Status,
		"error":  job.Error,
	})
	jm.broadcastUpdate(job)
}

// CleanupOldJobs removes finished jobs that completed more than maxAge ago
func (jm *JobManager) CleanupOldJobs(maxAge time.Duration) int {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range jm.jobs {
		if job.Finished() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(jm.jobs, id)
			delete(jm.listeners, id)
			removed++
		}
	}
	if removed > 0 {
		AppLogger.Info("Removed %d finished jobs", removed)
	}
	return removed
}

// RegisterSSEListener registers a channel to receive job updates
func (jm *JobManager) RegisterSSEListener(jobID string, updateChan chan Job) {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	jm.listeners[jobID] = append(jm.listeners[jobID], updateChan)
}

// UnregisterSSEListener removes a channel from job updates
func (jm *JobManager) UnregisterSSEListener(jobID string, updateChan chan Job) {
	jm.mutex.Lock()
	defer jm.mutex.Unlock()

	listeners := jm.listeners[jobID]
	for i, ch := range listeners {
		if ch == updateChan {
			jm.listeners[jobID] = append(listeners[:i], listeners[i+1:]...)
			break
		}
	}
	if len(jm.listeners[jobID]) == 0 {
		delete(jm.listeners, jobID)
	}
}

// broadcastUpdate sends a copy of the job to its listeners; callers hold the lock.
// A full listener misses intermediate progress, but a terminal snapshot evicts the oldest
// queued update so it is always delivered.
func (jm *JobManager) broadcastUpdate(job *Job) {
	for _, ch := range jm.listeners[job.ID] {
		select {
		case ch <- *job:
			continue
		default:
		}

		if !job.Finished() {
			AppLogger.WarnWithContext(&LogContext{JobID: job.ID}, "Channel full, skipping update")
			continue
		}

		select {
		case <-ch:
		default:
		}
		select {
		case ch <- *job:
		default:
			AppLogger.ErrorWithContext(&LogContext{JobID: job.ID}, "Channel full, terminal update not queued")
		}
	}
}
