// Package opencode is the HTTP client for the external agent server: it
// creates and aborts sessions, submits prompts, answers question and
// permission requests, and subscribes to the server's event stream.
package opencode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "http://127.0.0.1:4096"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithDirectory pins all requests to one working directory when the server
// multiplexes several behind one transport.
func WithDirectory(directory string) ClientOption {
	return func(c *Client) {
		c.directory = directory
	}
}

// Client talks to one agent server.
type Client struct {
	baseURL    string
	directory  string
	httpClient *http.Client
}

// NewClient creates a client for the agent server.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionInfo is the server's view of a session.
type SessionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PromptRequest submits one user turn. Model is optional; when set it pins
// the model for this turn.
type PromptRequest struct {
	Parts []PromptPart `json:"parts"`
	Model *ModelRef    `json:"model,omitempty"`
}

// PromptPart is one part of a prompt message.
type PromptPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ModelRef identifies a provider/model pair.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// PermissionReply answers a permission request.
type PermissionReply struct {
	Reply   string `json:"reply"` // once | always | reject
	Message string `json:"message,omitempty"`
}

// CreateSession creates a new session on the server.
func (c *Client) CreateSession(ctx context.Context, title string) (*SessionInfo, error) {
	var info SessionInfo
	err := c.do(ctx, http.MethodPost, "/session", map[string]string{"title": title}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Abort cancels the session's current turn on the server.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}

// Prompt submits a user turn for the session.
func (c *Client) Prompt(ctx context.Context, sessionID string, req *PromptRequest) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/message", req, nil)
}

// ReplyQuestion answers a question request. Answers holds one selected
// option set per question in the batch.
func (c *Client) ReplyQuestion(ctx context.Context, requestID string, answers [][]string) error {
	return c.do(ctx, http.MethodPost, "/question/"+url.PathEscape(requestID)+"/reply",
		map[string][][]string{"answers": answers}, nil)
}

// RejectQuestion declines a question request.
func (c *Client) RejectQuestion(ctx context.Context, requestID string) error {
	return c.do(ctx, http.MethodPost, "/question/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

// ReplyPermission resolves a permission request.
func (c *Client) ReplyPermission(ctx context.Context, requestID string, reply PermissionReply) error {
	return c.do(ctx, http.MethodPost, "/permission/"+url.PathEscape(requestID)+"/reply", reply, nil)
}

// EventResult is one raw envelope from the event stream, or a terminal
// stream error.
type EventResult struct {
	Raw json.RawMessage
	Err error
}

// Events subscribes to the server's event stream. The channel closes when
// the stream ends or the context is cancelled; a read failure is delivered
// as the final result.
func (c *Client) Events(ctx context.Context) (<-chan EventResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/event"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("event stream error (status %d): %s", resp.StatusCode, string(respBody))
	}

	out := make(chan EventResult)
	go c.streamReader(resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(body io.ReadCloser, out chan<- EventResult) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Tool outputs can be large; give the scanner room.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			out <- EventResult{Raw: json.RawMessage(data)}
		}
	}

	if err := scanner.Err(); err != nil {
		out <- EventResult{Err: fmt.Errorf("stream read error: %w", err)}
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(payload))
	}

	if respBody != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, respBody); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	if c.directory == "" {
		return c.baseURL + path
	}
	return c.baseURL + path + "?directory=" + url.QueryEscape(c.directory)
}
