// Package gateway is a client for an OpenAI-compatible chat-completion
// gateway. It issues exactly one upstream attempt per call; retrying is left
// to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
)

const (
	// DefaultTimeout bounds a whole upstream exchange, including the time
	// spent streaming the body.
	DefaultTimeout = 5 * time.Minute

	completionsPath = "/chat/completions"

	// maxErrorBody caps how much of a failed upstream body is kept for logs.
	maxErrorBody = 4 * 1024
)

// Config holds the upstream gateway settings. It is read-only once passed to
// New.
type Config struct {
	// BaseURL is the gateway root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model is the model name sent with every request.
	Model string

	// Timeout is the transport timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Validate returns a *ConfigError for the first missing setting.
func (c Config) Validate() error {
	switch {
	case c.APIKey == "":
		return &ConfigError{Field: "api key"}
	case c.BaseURL == "":
		return &ConfigError{Field: "base url"}
	case c.Model == "":
		return &ConfigError{Field: "model"}
	}
	return nil
}

// Client sends chat-completion requests to the gateway.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client. The configuration is not validated here; every call
// validates it first so a missing credential surfaces as a *ConfigError.
func New(config Config, opts ...Option) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// Stream sends a streaming completion request and returns the open upstream
// response on success. The caller must close the response body.
//
// A non-2xx upstream status is returned as a *StatusError with the body
// already consumed and closed.
func (c *Client) Stream(ctx context.Context, messages []llm.UpstreamMessage) (*http.Response, error) {
	return c.do(ctx, llm.CompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   true,
	})
}

// Complete sends a non-streaming completion request and returns the text of
// the first choice.
func (c *Client) Complete(ctx context.Context, messages []llm.UpstreamMessage) (string, error) {
	resp, err := c.do(ctx, llm.CompletionRequest{
		Model:    c.config.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out llm.CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding upstream response: %w", err)
	}

	c.logger.Debug("upstream completion received",
		"model", out.Model,
		"choices", len(out.Choices),
	)
	return out.Text(), nil
}

func (c *Client) do(ctx context.Context, body llm.CompletionRequest) (*http.Response, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + completionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("forwarding request to upstream",
		"url", url,
		"model", body.Model,
		"stream", body.Stream,
		"message_count", len(body.Messages),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("upstream returned error",
			"status", resp.StatusCode,
			"body", string(errBody),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(errBody)}
	}

	return resp, nil
}
