package llm

import (
	"context"
	"fmt"
)

// NewClient builds the provider named in opts. The context is only used
// for client construction (the Gemini SDK dials during setup); each
// completion call carries its own context.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	opts = opts.withDefaults()

	switch opts.Provider {
	case "ollama", "":
		return NewOllamaClient(opts)
	case "gemini":
		return NewGeminiClient(ctx, opts)
	case "openai":
		return NewOpenAIClient(opts)
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: ollama, gemini, openai)", opts.Provider)
	}
}
