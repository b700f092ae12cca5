// Package client talks to a running quill relay from the terminal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/quill/pkg/assist"
	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/logger"
)

// DefaultTimeout matches the relay's own upstream timeout.
const DefaultTimeout = 5 * time.Minute

// Error is a non-2xx relay response. Message is the relay's {error} text, or
// the raw body when it is not JSON.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("relay returned status %d: %s", e.Status, e.Message)
}

// RateLimited reports whether the relay passed through a 429.
func (e *Error) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Client calls the relay's chat and assist endpoints.
type Client struct {
	target     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
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

// New creates a Client for the relay at target, e.g. "http://localhost:8080".
func New(target string, opts ...Option) *Client {
	c := &Client{
		target: strings.TrimSuffix(target, "/"),
		httpClient: &http.Client{
			// Streams are cut by ctx, not by a client timeout.
			Timeout: 0,
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamChat posts a chat request and returns the open event-stream body.
// The body stays tied to ctx: cancelling ctx aborts the read. The caller
// must close it.
func (c *Client) StreamChat(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error) {
	resp, err := c.post(ctx, "/api/chat/stream", req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Assist runs a one-shot task and decodes the result into out.
func (c *Client) Assist(ctx context.Context, task assist.Task, in assist.Input, out any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := c.post(ctx, "/api/assist/"+string(task), in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s result: %w", task, err)
	}
	return nil
}

// Ping checks the relay is reachable.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/ping")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// History is a conversation as returned by the history API, oldest first.
type History struct {
	HeadHash string           `json:"head_hash"`
	Messages []HistoryMessage `json:"messages"`
}

// HistoryMessage is one stored node of a History.
type HistoryMessage struct {
	Hash    string `json:"hash"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Partial bool   `json:"partial,omitempty"`
}

// ChatMessages returns the history as chat messages to resume from.
func (h *History) ChatMessages() []llm.Message {
	msgs := make([]llm.Message, 0, len(h.Messages))
	for _, m := range h.Messages {
		msgs = append(msgs, llm.NewTextMessage(m.Role, m.Content))
	}
	return msgs
}

// History fetches the conversation ending at hash. The client must point at
// the history API rather than the relay.
func (c *Client) History(ctx context.Context, hash string) (*History, error) {
	resp, err := c.get(ctx, "/dag/history/"+url.PathEscape(hash))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h History
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &h, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", c.target, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.target + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("sending relay request", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to relay: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))

	var body llm.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &Error{Status: resp.StatusCode, Message: body.Error}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
