package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chipwright configuration.
type Config struct {
	// Provider selects the generation backend (ollama, gemini, openai).
	Provider string `yaml:"provider"`

	// Model is the model identifier passed to the provider.
	Model string `yaml:"model"`

	// MaxRetries is the total attempt budget per module (>= 1).
	MaxRetries int `yaml:"max_retries"`

	// WorkspaceDir holds per-attempt build areas.
	WorkspaceDir string `yaml:"workspace_dir"`

	// DesignsDir receives verified designs on success.
	DesignsDir string `yaml:"designs_dir"`

	// SaveOnSuccess persists verified designs to DesignsDir.
	SaveOnSuccess bool `yaml:"save_on_success"`

	// ShowDiffs renders a diff between consecutive repair attempts.
	ShowDiffs bool `yaml:"show_diffs"`

	// Parallel bounds concurrent sibling verification (1 = sequential).
	Parallel int `yaml:"parallel"`

	// Timeouts for the external boundaries.
	Timeouts TimeoutConfig `yaml:"timeouts"`

	// LLM provider tuning.
	LLM LLMConfig `yaml:"llm"`

	// Store configures the run journal.
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// TimeoutConfig bounds each external call. Values are duration strings.
type TimeoutConfig struct {
	Generate string `yaml:"generate"` // per generation call
	Compile  string `yaml:"compile"`  // iverilog phase
	Simulate string `yaml:"simulate"` // vvp phase
	Run      string `yaml:"run"`      // whole-run wall budget
}

// LLMConfig tunes the generation backend.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"` // openai-compatible endpoint
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"` // ollama context window
}

// StoreConfig configures the SQLite run journal.
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables journaling
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:      "ollama",
		Model:         "qwen2.5-coder:14b",
		MaxRetries:    5,
		WorkspaceDir:  "build",
		DesignsDir:    "designs",
		SaveOnSuccess: true,
		ShowDiffs:     true,
		Parallel:      1,

		Timeouts: TimeoutConfig{
			Generate: "120s",
			Compile:  "30s",
			Simulate: "10s",
			Run:      "30m",
		},

		LLM: LLMConfig{
			Temperature: 0.2,
			NumCtx:      8192,
		},

		Store: StoreConfig{
			Path: "chipwright.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "config.yaml"

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// CHIPWRIGHT_* variables take priority over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHIPWRIGHT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("CHIPWRIGHT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CHIPWRIGHT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("CHIPWRIGHT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CHIPWRIGHT_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CHIPWRIGHT_STORE"); v != "" {
		c.Store.Path = v
	}

	// Provider-specific keys fill in when no explicit key is set.
	if c.LLM.APIKey == "" {
		switch c.Provider {
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// GetGenerateTimeout returns the per-generation-call timeout.
func (c *Config) GetGenerateTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Generate)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetCompileTimeout returns the compile phase timeout.
func (c *Config) GetCompileTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Compile)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSimulateTimeout returns the simulation phase timeout.
func (c *Config) GetSimulateTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Simulate)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetRunTimeout returns the whole-run wall-clock budget.
func (c *Config) GetRunTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Run)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// ValidProviders lists all supported generation providers.
var ValidProviders = []string{"ollama", "gemini", "openai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid provider: %s (valid: %v)", c.Provider, ValidProviders)
	}

	if c.Model == "" {
		return fmt.Errorf("model not configured")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1, got %d", c.MaxRetries)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be >= 1, got %d", c.Parallel)
	}

	// Remote providers need a key; a local ollama daemon does not.
	if c.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("gemini provider requires an API key (set CHIPWRIGHT_API_KEY or GEMINI_API_KEY)")
	}

	return nil
}
