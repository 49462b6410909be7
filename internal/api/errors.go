package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/sashabaranov/go-openai"
)

// ErrConfiguration is returned when the client cannot be built at all, e.g. a missing credential.
var ErrConfiguration = errors.New("configuration error")

// CallErrorKind classifies why a single completion call failed.
type CallErrorKind string

const (
	KindStatus    CallErrorKind = "status"
	KindTransport CallErrorKind = "transport"
	KindTimeout   CallErrorKind = "timeout"
	KindParse     CallErrorKind = "parse"
)

// CallError is the typed failure of one remote completion call.
type CallError struct {
	Kind       CallErrorKind
	StatusCode int
	Err        error
}

// Error renders a human-readable description. Status failures use the literal "HTTP <code>".
func (e *CallError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *CallError) Unwrap() error {
	return e.Err
}

// IsCallError checks if an error is a CallError
func IsCallError(err error) bool {
	var callErr *CallError
	return errors.As(err, &callErr)
}

// classifyError maps a go-openai client error onto a CallError.
func classifyError(err error) *CallError {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &CallError{Kind: KindTimeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &CallError{Kind: KindStatus, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &CallError{Kind: KindStatus, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &CallError{Kind: KindParse, Err: err}
	}

	return &CallError{Kind: KindTransport, Err: err}
}
