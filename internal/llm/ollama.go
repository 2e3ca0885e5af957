package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ollamaAPI is the slice of the ollama client this package uses. Tests
// substitute a stub; production code wraps *ollama.Client.
type ollamaAPI interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
	List(ctx context.Context) (*ollama.ListResponse, error)
}

// OllamaClient talks to a local (or remote) ollama daemon.
type OllamaClient struct {
	api         ollamaAPI
	model       string
	temperature float64
	numCtx      int
	timeout     time.Duration
}

// NewOllamaClient connects to the daemon named by opts.BaseURL, or by
// OLLAMA_HOST / the default local address when unset.
func NewOllamaClient(opts Options) (*OllamaClient, error) {
	opts = opts.withDefaults()

	var backend *ollama.Client
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base URL %q: %w", opts.BaseURL, err)
		}
		backend = ollama.NewClient(u, http.DefaultClient)
	} else {
		var err error
		backend, err = ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
	}

	return newOllamaClientWithAPI(opts, backend), nil
}

func newOllamaClientWithAPI(opts Options, backend ollamaAPI) *OllamaClient {
	return &OllamaClient{
		api:         backend,
		model:       opts.Model,
		temperature: opts.Temperature,
		numCtx:      opts.NumCtx,
		timeout:     opts.Timeout,
	}
}

// Complete sends a prompt and returns the completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]ollama.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollama.Message{Role: "user", Content: userPrompt})

	stream := false
	req := &ollama.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_ctx":     c.numCtx,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sb strings.Builder
	respFunc := func(res ollama.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		return nil
	}

	if err := c.api.Chat(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("model %s: %w", c.model, ErrEmptyCompletion)
	}
	return out, nil
}

// ListModels returns the names of the models the daemon serves. Used by
// the preflight check.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama is not reachable (is the daemon running?): %w", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// GetModel returns the current model.
func (c *OllamaClient) GetModel() string {
	return c.model
}
