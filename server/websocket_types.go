package server

import (
	"encoding/json"
	"time"
)

// WebSocket message types
const (
	MessageTypeProgress = "progress"
	MessageTypeError    = "error"
	MessageTypeComplete = "complete"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	JobID     string      `json:"jobId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ProgressUpdate reports how many outcomes of a job have been recorded
type ProgressUpdate struct {
	JobID                  string  `json:"jobId"`
	Status                 string  `json:"status"`
	Model                  string  `json:"model"`
	Completed              int     `json:"completed"`
	Total                  int     `json:"total"`
	Succeeded              int     `json:"succeeded"`
	Failed                 int     `json:"failed"`
	Progress               float64 `json:"progress"`               // 0-100
	ElapsedTime            float64 `json:"elapsedTime"`            // seconds
	EstimatedTimeRemaining float64 `json:"estimatedTimeRemaining"` // seconds
}

// ErrorMessage represents error information
type ErrorMessage struct {
	JobID   string `json:"jobId"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CompletionMessage represents benchmark completion information
type CompletionMessage struct {
	JobID     string      `json:"jobId"`
	Status    string      `json:"status"`
	Results   interface{} `json:"results,omitempty"`
	Duration  float64     `json:"duration"` // total duration in seconds
	Completed time.Time   `json:"completed"`
}

func newMessage(messageType, jobID string, data interface{}) *WebSocketMessage {
	return &WebSocketMessage{
		Type:      messageType,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewProgressMessage creates a progress update message
func NewProgressMessage(jobID string, progress ProgressUpdate) *WebSocketMessage {
	return newMessage(MessageTypeProgress, jobID, progress)
}

// NewErrorMessage creates an error message
func NewErrorMessage(jobID string, errMsg ErrorMessage) *WebSocketMessage {
	return newMessage(MessageTypeError, jobID, errMsg)
}

// NewCompletionMessage creates a completion message
func NewCompletionMessage(jobID string, completion CompletionMessage) *WebSocketMessage {
	return newMessage(MessageTypeComplete, jobID, completion)
}

// ToJSON converts a WebSocket message to JSON bytes
func (m *WebSocketMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a WebSocket message from JSON bytes
func FromJSON(data []byte) (*WebSocketMessage, error) {
	var msg WebSocketMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
