package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient calls an OpenAI-compatible chat completions endpoint over
// plain HTTP. It works against OpenRouter, Groq and similar gateways.
type OpenRouterClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

type OpenRouterOption func(*OpenRouterClient)

func WithBaseURL(u string) OpenRouterOption {
	return func(c *OpenRouterClient) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) OpenRouterOption {
	return func(c *OpenRouterClient) { c.http = h }
}

func NewOpenRouterClient(apiKey, model string, timeout time.Duration, opts ...OpenRouterOption) *OpenRouterClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &OpenRouterClient{
		http:    &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultOpenRouterURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenRouterClient) Name() string { return "openrouter:" + c.model }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the completion payload we depend on.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

// content validates the payload: choices[0].message.content must be present
// and non-empty.
func (r *chatResponse) content() (string, error) {
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	msg := r.Choices[0].Message
	if msg == nil {
		return "", fmt.Errorf("choices[0].message missing")
	}
	if msg.Content == nil {
		return "", fmt.Errorf("choices[0].message.content missing")
	}
	if strings.TrimSpace(*msg.Content) == "" {
		return "", fmt.Errorf("choices[0].message.content empty")
	}
	return *msg.Content, nil
}

func (c *OpenRouterClient) Send(ctx context.Context, req Request) (string, error) {
	body := chatRequest{Model: c.model}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError("openrouter", resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", malformed("openrouter", "decode: %v", err)
	}
	// Upstream failures can arrive as 200 with an error object.
	if out.Error != nil {
		code := http.StatusBadGateway
		var n int
		if json.Unmarshal(out.Error.Code, &n) == nil && n >= 400 {
			code = n
		}
		return "", &StatusError{Provider: "openrouter", StatusCode: code, Body: out.Error.Message}
	}
	text, err := out.content()
	if err != nil {
		return "", malformed("openrouter", "%v", err)
	}
	return text, nil
}
