package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
}

// NewGeminiClient builds a Gemini API client. An empty apiKey lets genai
// read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{cli: cli, model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) Send(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", g.convertErr(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", malformed("gemini", "no candidates")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", malformed("gemini", "candidate has no parts")
	}
	var b strings.Builder
	for _, p := range content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", malformed("gemini", "empty text")
	}
	return b.String(), nil
}

// convertErr maps genai API errors onto StatusError. Details are kept in
// the body because quota errors carry their retryDelay there.
func (g *GeminiClient) convertErr(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var p *genai.APIError
		if !errors.As(err, &p) || p == nil {
			return err
		}
		apiErr = *p
	}
	body := apiErr.Message
	if len(apiErr.Details) > 0 {
		if raw, mErr := json.Marshal(apiErr.Details); mErr == nil {
			body += " " + string(raw)
		}
	}
	return &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: body}
}
