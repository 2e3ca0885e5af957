// Package llm wraps the text-generation backends behind a single
// capability: produce text from a structured prompt. Provider differences
// (local ollama daemon, Gemini API, OpenAI-compatible servers) stay inside
// this package; callers treat replies as untrusted text.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Client defines the interface for generation providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrEmptyCompletion is returned when a backend answers with no usable text.
var ErrEmptyCompletion = errors.New("empty completion from backend")

// Options configures a provider client.
type Options struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	NumCtx      int
	Timeout     time.Duration
}

// withDefaults fills the zero values callers usually leave unset.
func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.NumCtx <= 0 {
		o.NumCtx = 8192
	}
	return o
}

// ModelAvailable reports whether want is served by one of the installed
// models. Ollama tags models with ":latest" when no tag is given, so the
// match tolerates tag differences in both directions.
func ModelAvailable(models []string, want string) bool {
	base := strings.TrimSuffix(want, ":latest")
	for _, m := range models {
		if m == want || m == base || m == base+":latest" {
			return true
		}
		if strings.TrimSuffix(m, ":latest") == base {
			return true
		}
	}
	return false
}
