package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli         *genai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewGeminiClient creates a Gemini-backed client. The API key comes from
// opts or the GEMINI_API_KEY environment variable (handled by the SDK).
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	opts = opts.withDefaults()

	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}

	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		cli:         cli,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if c.temperature > 0 {
		temp := float32(c.temperature)
		cfg.Temperature = &temp
	}

	contents := []*genai.Content{{Parts: []*genai.Part{{Text: userPrompt}}}}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
			}
		}

		resp, err := c.cli.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
			len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("model %s: %w", c.model, ErrEmptyCompletion)
			continue
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		out := strings.TrimSpace(sb.String())
		if out == "" {
			lastErr = fmt.Errorf("model %s: %w", c.model, ErrEmptyCompletion)
			continue
		}
		return out, nil
	}

	return "", fmt.Errorf("gemini completion failed: %w", lastErr)
}

// GetModel returns the current model.
func (c *GeminiClient) GetModel() string {
	return c.model
}
