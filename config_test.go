package visualswe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEndpointEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VISUALSWE_PROVIDER", "VISUALSWE_BASE_URL", "VISUALSWE_MODEL", "VISUALSWE_API_KEY",
		"base_url", "model", "api_key", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEndpointEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.ErrorIs(t, cfg.Validate(), ErrModelMissing)
}

func TestLoadConfig_File(t *testing.T) {
	clearEndpointEnv(t)
	t.Setenv("VISUALSWE_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "visualswe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
endpoint:
  base_url: http://localhost:8000/v1
  model: Qwen/Qwen2.5-VL-7B-Instruct
  timeout: 90s
kind: video
layout:
  root: /data/videos
concurrency: 4
backoff: 500ms
stages:
  summary:
    temperature: 0.1
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderOpenAI, cfg.Endpoint.Provider)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Endpoint.BaseURL)
	assert.Equal(t, "Qwen/Qwen2.5-VL-7B-Instruct", cfg.Endpoint.Model)
	assert.Equal(t, 90*time.Second, cfg.Endpoint.Timeout)
	assert.Equal(t, "from-env", cfg.Endpoint.APIKey)
	assert.Equal(t, MediaVideo, cfg.Kind)
	assert.Equal(t, "/data/videos", cfg.Layout.Root)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 2, cfg.MaxRetries, "unset keys keep their defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff)
	assert.Equal(t, 0.1, *cfg.Stages[StageSummary].Temperature)
}

func TestLoadConfig_BadFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [1"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv_Precedence(t *testing.T) {
	env := map[string]string{
		"base_url":        "http://bare/v1",
		"model":           "bare-model",
		"VISUALSWE_MODEL": "prefixed-model",
		"OPENAI_API_KEY":  "openai-key",
		"GEMINI_API_KEY":  "gemini-key",
		"GOOGLE_API_KEY":  "google-key",
	}
	getenv := func(k string) string { return env[k] }

	cfg := DefaultConfig()
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "http://bare/v1", cfg.Endpoint.BaseURL)
	assert.Equal(t, "prefixed-model", cfg.Endpoint.Model)
	assert.Equal(t, "openai-key", cfg.Endpoint.APIKey)

	cfg = DefaultConfig()
	cfg.Endpoint.Provider = ProviderGemini
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "gemini-key", cfg.Endpoint.APIKey)

	env["api_key"] = "bare-key"
	cfg = DefaultConfig()
	cfg.ApplyEnv(getenv)
	assert.Equal(t, "bare-key", cfg.Endpoint.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.Endpoint.Model = "m"
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"provider":    func(c *Config) { c.Endpoint.Provider = "bedrock" },
		"kind":        func(c *Config) { c.Kind = "audio" },
		"concurrency": func(c *Config) { c.Concurrency = -1 },
		"fps":         func(c *Config) { c.FPS = -2 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_PipelineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint.Model = "m"
	cfg.Kind = MediaVideo
	cfg.Concurrency = 3
	cfg.Stages = map[Stage]GenerationSettings{StageSummary: {Seed: ptr[int64](7)}}

	p := NewForTesting(InvokerFunc(nil), cfg.PipelineOptions()...)
	assert.Equal(t, "m", p.opts.Model)
	assert.Equal(t, MediaVideo, p.Kind())
	assert.Equal(t, DefaultLayout(MediaVideo), p.Layout())
	assert.Equal(t, 3, p.opts.Concurrency)
	assert.Equal(t, 2, p.opts.MaxRetries)
	assert.Equal(t, int64(7), *p.opts.Stages[StageSummary].Seed)
	assert.Equal(t, 0.2, *p.opts.Stages[StageRawDescription].Temperature)
	assert.Equal(t, 5*time.Minute, p.opts.Timeout)
}

func TestConfig_PipelineOptions_MergesStageSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint.Model = "m"
	cfg.Stages = map[Stage]GenerationSettings{StageDescription: {Temperature: ptr(0.9)}}

	p := NewForTesting(InvokerFunc(nil), cfg.PipelineOptions()...)
	s := p.opts.Stages[StageDescription]
	require.NotNil(t, s.Temperature)
	require.NotNil(t, s.Seed)
	assert.Equal(t, 0.9, *s.Temperature)
	assert.Equal(t, int64(42), *s.Seed)
}

func TestConfig_PipelineOptions_TimeoutReachesCalls(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Endpoint.Model = "m"
	cfg.Endpoint.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 0

	inv := InvokerFunc(func(ctx context.Context, req *Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p := NewForTesting(inv, cfg.PipelineOptions()...)
	_, err := p.call(context.Background(), StageSummary, "sys", []*Part{NewTextPart("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewInvoker(t *testing.T) {
	inv, err := NewInvoker(context.Background(), EndpointConfig{Model: "m", BaseURL: "http://localhost:1/v1"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIInvoker{}, inv)

	_, err = NewInvoker(context.Background(), EndpointConfig{Provider: "bedrock"}, nil)
	assert.Error(t, err)
}
