package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wirechat/wirechat/core/protocol"
)

// Client calls an OpenAI-compatible chat-completions endpoint. DashScope's
// compatible mode is the default target; enable_search is forwarded as a
// DashScope extension when requested.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client from configuration. Returns ErrMissingAPIKey
// when no credentials are configured.
func NewClient(cfg *Config) (*Client, error) {
	timeout, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		// No client-level timeout: streaming responses stay open for the
		// life of the generation. Non-streaming calls bound themselves via
		// context in Complete.
		httpClient: &http.Client{},
	}, nil
}

// chatRequest is the upstream request body.
type chatRequest struct {
	Model        string        `json:"model"`
	Messages     []chatMessage `json:"messages"`
	Stream       bool          `json:"stream,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	EnableSearch bool          `json:"enable_search,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete performs a blocking chat-completion call bounded by the
// configured timeout.
func (c *Client) Complete(ctx context.Context, turns []protocol.Turn, params Params) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, turns, params, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed ChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("upstream returned no choices")
	}
	return parsed.Content(), nil
}

// Stream starts a streaming chat-completion call. The returned Stream pulls
// SSE chunks lazily; cancelling ctx aborts the HTTP transport so upstream
// generation is abandoned rather than drained.
func (c *Client) Stream(ctx context.Context, turns []protocol.Turn, params Params) (Stream, error) {
	resp, err := c.do(ctx, turns, params, true)
	if err != nil {
		return nil, err
	}
	return newSSEStream(ctx, resp.Body), nil
}

func (c *Client) do(ctx context.Context, turns []protocol.Turn, params Params, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:        c.model,
		Messages:     make([]chatMessage, len(turns)),
		Stream:       stream,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		EnableSearch: params.EnableSearch,
	}
	if params.Model != "" {
		reqBody.Model = params.Model
	}
	for i, turn := range turns {
		reqBody.Messages[i] = chatMessage{Role: string(turn.Role), Content: turn.Content}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

// parseAPIError extracts the upstream error message from a non-2xx reply.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Message = parsed.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
