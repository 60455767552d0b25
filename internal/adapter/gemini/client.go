package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrEmptyResponse = errors.New("empty gemini response")

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{client: client, model: model}, nil
}

// Generate sends the system and user messages as a single flattened
// prompt. Deterministic settings: temperature 0, 600 output tokens.
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	slog.DebugContext(ctx, "generating answer", "model", c.model, "prompt_len", len(system)+len(user))

	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(0)
	m.SetMaxOutputTokens(600)

	prompt := fmt.Sprintf("System: %s\n\nUser: %s", system, user)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		return "", err
	}

	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && t != "" {
				parts = append(parts, string(t))
			}
		}
	}
	if len(parts) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}
