package llmclient

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIClient uses the official SDK. SDK retries are disabled so the
// retry policy in package llm is the only one in effect.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Name() string { return "openai:" + c.model }

func (c *OpenAIClient) Send(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			se := &StatusError{Provider: "openai", StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
			if apiErr.Response != nil {
				se.RetryAfter = NextWait(ParseRateLimitHeaders(apiErr.Response.Header))
			}
			return "", se
		}
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", malformed("openai", "no choices")
	}
	text := completion.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", malformed("openai", "empty content")
	}
	return text, nil
}
