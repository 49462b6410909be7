package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenAI-compatible endpoint used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// CompletionRequest is one text-completion call.
type CompletionRequest struct {
	Model     string
	Prompt    string
	MaxTokens int
}

// Completion is the parsed body of a successful completion call.
type Completion struct {
	Text             string
	TokensUsed       int
	PromptTokens     int
	CompletionTokens int
}

// Invoker issues a single completion call. Failures are returned as *CallError.
type Invoker interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Streamer issues a streaming completion call, handing each text chunk to onChunk.
type Streamer interface {
	Stream(ctx context.Context, req CompletionRequest, onChunk func(text string) error) error
}

// ClientConfig holds what is needed to reach the completion endpoint.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible /completions endpoint.
type Client struct {
	client *openai.Client
}

// NewClient builds a Client, failing with ErrConfiguration when the endpoint cannot be used.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key is not set", ErrConfiguration)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	return &Client{client: openai.NewClientWithConfig(config)}, nil
}

// Complete sends a prompt to the completions endpoint and returns its token usage.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		callErr := classifyError(err)
		log.Printf("❌ Completion request failed for model %s: %v", req.Model, callErr)
		return Completion{}, callErr
	}

	if resp.Usage == nil {
		return Completion{}, &CallError{Kind: KindParse, Err: errors.New("response has no usage block")}
	}

	completion := Completion{
		TokensUsed:       resp.Usage.TotalTokens,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		completion.Text = resp.Choices[0].Text
	}
	return completion, nil
}

// Stream sends a prompt with streaming enabled. Empty chunks are skipped; the call ends when
// the upstream stream ends or onChunk returns an error.
func (c *Client) Stream(ctx context.Context, req CompletionRequest, onChunk func(text string) error) error {
	log.Printf("🔌 Creating completion stream for model: %s", req.Model)

	stream, err := c.client.CreateCompletionStream(ctx, openai.CompletionRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return classifyError(err)
	}
	defer stream.Close()

	start := time.Now()
	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return classifyError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Text == "" {
			continue
		}
		chunks++
		if err := onChunk(resp.Choices[0].Text); err != nil {
			return err
		}
	}

	log.Printf("✅ Completion stream finished: %d chunks in %.2fs", chunks, time.Since(start).Seconds())
	return nil
}
