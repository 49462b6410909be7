package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"promptbench/internal/api"
)

const sseKeepAlive = 15 * time.Second

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// StreamJobProgress streams job snapshots via SSE until the job finishes or the client leaves
func (h *Handlers) StreamJobProgress(c *gin.Context) {
	jobID := c.Param("jobId")

	// register before reading the job so a finish in between is not missed
	updateChan := make(chan Job, 16)
	h.svc.Jobs.RegisterSSEListener(jobID, updateChan)
	defer h.svc.Jobs.UnregisterSSEListener(jobID, updateChan)

	job, exists := h.svc.Jobs.GetJob(jobID)
	if !exists {
		abortWithError(c, http.StatusNotFound, "Not Found", "Job not found")
		return
	}

	setSSEHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.WriteString(job.ToSSEMessage())
	c.Writer.Flush()

	if job.Finished() {
		return
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			AppLogger.InfoWithContext(&LogContext{JobID: jobID}, "SSE connection closed for job")
			return
		case <-ticker.C:
			// a finish may have raced a full channel; the stored job is authoritative
			if current, ok := h.svc.Jobs.GetJob(jobID); !ok || current.Finished() {
				if ok {
					c.Writer.WriteString(current.ToSSEMessage())
					c.Writer.Flush()
				}
				return
			}
			c.Writer.WriteString("data: {\"type\":\"ping\",\"timestamp\":\"" + time.Now().UTC().Format(time.RFC3339) + "\"}\n\n")
			c.Writer.Flush()
		case update := <-updateChan:
			c.Writer.WriteString(update.ToSSEMessage())
			c.Writer.Flush()
			if update.Finished() {
				return
			}
		}
	}
}

// streamGeneration relays upstream text chunks as `data: {"content": ...}` frames.
// A failure before the first chunk is answered with a JSON error instead.
func streamGeneration(c *gin.Context, client api.Streamer, req api.CompletionRequest, timeout time.Duration) {
	logCtx := requestLogContext(c, req.Model, "generate-stream")

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	chunks := 0
	err := client.Stream(ctx, req, func(text string) error {
		data, err := json.Marshal(StreamChunk{Content: text})
		if err != nil {
			return err
		}
		if chunks == 0 {
			setSSEHeaders(c)
			c.Status(http.StatusOK)
		}
		chunks++
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})

	if err != nil {
		AppLogger.ErrorWithContext(logCtx, "Stream failed after %d chunks: %v", chunks, err)
		if chunks == 0 {
			status, title := upstreamErrorStatus(err)
			abortWithError(c, status, title, fmt.Sprintf("OpenRouter API error: %v", err))
		}
		return
	}

	if chunks == 0 {
		// upstream produced no text; still answer with an empty event stream
		setSSEHeaders(c)
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
	AppLogger.InfoWithContext(logCtx, "Stream finished with %d chunks", chunks)
}
