// Package openai talks to chat-completions compatible endpoints: OpenAI
// itself, or a local Ollama server through its /v1 API.
package openai

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

	"chefai"
	"chefai/coordinator"
	"chefai/tools"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModelID     = "gpt-4o-mini"
	defaultTemperature = 0.7
)

// APIError is a non-2xx response or an error object reported by the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "provider error: " + e.Message
	}
	return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Message)
}

type ClientOpts struct {
	BaseURL     string
	ModelID     string
	APIKey      string
	MaxTokens   int32
	// Temperature is sent as is when set, including 0.
	Temperature *float32
	TopP        float32
	// RequestsPerMinute paces outbound requests; 0 disables pacing.
	RequestsPerMinute int
	HTTPClient        chefai.HTTPClient
}

type LLMClient struct {
	endpoint   string
	opts       ClientOpts
	httpClient chefai.HTTPClient
	limiter    *rate.Limiter
}

func NewLLMClient(opts ClientOpts) *LLMClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.Temperature == nil {
		t := float32(defaultTemperature)
		opts.Temperature = &t
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &LLMClient{
		endpoint:   strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		opts:       opts,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
	}
}

// CheckCredentials reports ErrMissingCredential when the hosted OpenAI API is
// targeted without an API key. Other endpoints, such as a local Ollama
// server, may run without one.
func (c *LLMClient) CheckCredentials() error {
	if strings.TrimSpace(c.opts.APIKey) == "" && requiresAPIKey(c.opts.BaseURL) {
		return coordinator.ErrMissingCredential
	}
	return nil
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string                     `json:"type"`
	Function coordinator.ToolDefinition `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p,omitempty"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *LLMClient) Invoke(ctx context.Context, req coordinator.Request) (coordinator.Reply, error) {
	slog.Info("LLM_CLIENT: Invoked", "messages_len", len(req.Messages), "tools_len", len(req.Tools))

	if err := c.CheckCredentials(); err != nil {
		return coordinator.Reply{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return coordinator.Reply{}, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return coordinator.Reply{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return coordinator.Reply{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("LLM_CLIENT: Request failed", "error", err)
		return coordinator.Reply{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return coordinator.Reply{}, fmt.Errorf("failed to read response: %w", err)
	}

	var wr wireResponse
	decodeErr := json.Unmarshal(raw, &wr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && wr.Error != nil && wr.Error.Message != "" {
			msg = wr.Error.Message
		}
		slog.Error("LLM_CLIENT: Provider returned error status", "status", resp.StatusCode, "message", msg)
		return coordinator.Reply{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return coordinator.Reply{}, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if wr.Error != nil {
		return coordinator.Reply{}, &APIError{StatusCode: resp.StatusCode, Message: wr.Error.Message}
	}
	if len(wr.Choices) == 0 {
		return coordinator.Reply{}, fmt.Errorf("response has no choices")
	}

	choice := wr.Choices[0]
	var reply coordinator.Reply
	if choice.Message.Content != nil {
		reply.Text = *choice.Message.Content
	}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, tools.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tools.RawArguments(tc.Function.Arguments),
		})
	}

	// Small local models sometimes print tool calls instead of emitting them.
	if len(reply.ToolCalls) == 0 && len(req.Tools) > 0 {
		if text, calls := parseEmbeddedToolCalls(reply.Text); len(calls) > 0 {
			slog.Info("LLM_CLIENT: Recovered tool calls from text content", "calls_len", len(calls))
			reply.Text, reply.ToolCalls = text, calls
		}
	}

	slog.Info("LLM_CLIENT: Invoke succeeded",
		"latency_ms", time.Since(start).Milliseconds(),
		"finish_reason", choice.FinishReason,
		"content_length", len(reply.Text),
		"tool_calls", len(reply.ToolCalls),
	)
	return reply, nil
}

func (c *LLMClient) buildRequest(req coordinator.Request) wireRequest {
	wr := wireRequest{
		Model:       c.opts.ModelID,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: *c.opts.Temperature,
		TopP:        c.opts.TopP,
		MaxTokens:   c.opts.MaxTokens,
	}

	for _, m := range req.Messages {
		msg := wireMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
		if len(m.ToolCalls) > 0 {
			if len(m.Content) == 0 {
				msg.Content = nil
			}
			for _, tc := range m.ToolCalls {
				args := wireArguments(tc.Arguments)
				msg.ToolCalls = append(msg.ToolCalls, wireToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: wireFunction{Name: tc.Name, Arguments: args},
				})
			}
		}
		wr.Messages = append(wr.Messages, msg)
	}

	for _, def := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Type: "function", Function: def})
	}
	return wr
}

// wireArguments renders call arguments as the text the API expects. Arguments
// kept as a JSON string because they were not valid JSON are sent back verbatim.
func wireArguments(raw json.RawMessage) string {
	raw = tools.RawArguments(string(raw))
	var text string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &text) == nil {
		return text
	}
	return string(raw)
}

func requiresAPIKey(baseURL string) bool {
	u, err := url.Parse(baseURL)
	if err != nil {
		return true
	}
	return strings.EqualFold(u.Hostname(), "api.openai.com")
}
