package visualswe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// EndpointConfig locates the model endpoint.
type EndpointConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config is the full run configuration. It is built once and passed down
// explicitly.
type Config struct {
	Endpoint    EndpointConfig               `yaml:"endpoint"`
	Kind        MediaKind                    `yaml:"kind"`
	Layout      MediaLayout                  `yaml:"layout"`
	Concurrency int                          `yaml:"concurrency"`
	MaxRetries  int                          `yaml:"max_retries"`
	Backoff     time.Duration                `yaml:"backoff"`
	FPS         float64                      `yaml:"fps"`
	Stages      map[Stage]GenerationSettings `yaml:"stages"`
	PromptsDir  string                       `yaml:"prompts_dir"`
}

// DefaultConfig returns a sequential image run against an OpenAI-compatible
// endpoint.
func DefaultConfig() Config {
	return Config{
		Endpoint: EndpointConfig{
			Provider: ProviderOpenAI,
			Timeout:  5 * time.Minute,
		},
		Kind:        MediaImage,
		Concurrency: 1,
		MaxRetries:  2,
		Backoff:     2 * time.Second,
		FPS:         1.0,
	}
}

// LoadConfig reads an optional YAML file over the defaults and then applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides endpoint settings from the environment. VISUALSWE_*
// variables win over the bare base_url, api_key and model names, which win
// over the provider's usual key variable.
func (c *Config) ApplyEnv(getenv func(string) string) {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}
	if v := first("VISUALSWE_PROVIDER"); v != "" {
		c.Endpoint.Provider = v
	}
	if v := first("VISUALSWE_BASE_URL", "base_url"); v != "" {
		c.Endpoint.BaseURL = v
	}
	if v := first("VISUALSWE_MODEL", "model"); v != "" {
		c.Endpoint.Model = v
	}
	if v := first("VISUALSWE_API_KEY", "api_key"); v != "" {
		c.Endpoint.APIKey = v
	}
	if c.Endpoint.APIKey == "" {
		switch c.Endpoint.Provider {
		case ProviderGemini:
			c.Endpoint.APIKey = first("GEMINI_API_KEY", "GOOGLE_API_KEY")
		default:
			c.Endpoint.APIKey = getenv("OPENAI_API_KEY")
		}
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Endpoint.Model == "" {
		return fmt.Errorf("config: %w", ErrModelMissing)
	}
	switch c.Endpoint.Provider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Endpoint.Provider)
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("config: unknown media kind %q", c.Kind)
	}
	if c.Concurrency < 0 || c.MaxRetries < 0 || c.Backoff < 0 || c.FPS < 0 {
		return fmt.Errorf("config: concurrency, max_retries, backoff and fps must not be negative")
	}
	return nil
}

// PipelineOptions converts the config into pipeline options.
func (c Config) PipelineOptions() []func(*Options) {
	opts := []func(*Options){
		WithModel(c.Endpoint.Model),
		WithKind(c.Kind),
		WithLayout(c.Layout),
		WithConcurrency(c.Concurrency),
		WithTimeout(c.Endpoint.Timeout),
		WithRetry(c.MaxRetries, c.Backoff),
		WithFPS(c.FPS),
	}
	defaults := DefaultStageSettings()
	for stage, s := range c.Stages {
		opts = append(opts, WithStageSettings(stage, mergeSettings(defaults[stage], s)))
	}
	return opts
}

// mergeSettings overlays the fields set in override onto base.
func mergeSettings(base, override GenerationSettings) GenerationSettings {
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.Seed != nil {
		base.Seed = override.Seed
	}
	return base
}

// NewInvoker builds the backend named by the endpoint provider.
func NewInvoker(ctx context.Context, cfg EndpointConfig, log *slog.Logger) (Invoker, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIInvoker(cfg, log), nil
	case ProviderGemini:
		g, err := NewGeminiInvoker(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
