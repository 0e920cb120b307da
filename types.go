package visualswe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MediaKind selects the media family a run processes.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Label returns the capitalized form used in assembled statements.
func (k MediaKind) Label() string {
	switch k {
	case MediaVideo:
		return "Video"
	default:
		return "Image"
	}
}

// Plural returns the lowercase plural, e.g. "images".
func (k MediaKind) Plural() string { return string(k) + "s" }

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool { return k == MediaImage || k == MediaVideo }

// ParseMediaKind accepts "image", "video" and their plurals.
func ParseMediaKind(s string) (MediaKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return MediaImage, nil
	case "video", "videos":
		return MediaVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Stage identifies one enrichment pass.
type Stage string

const (
	StageRawDescription Stage = "raw_description"
	StageDescription    Stage = "description"
	StageAnalysis       Stage = "analysis"
	StageSummary        Stage = "summary"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageRawDescription, StageDescription, StageAnalysis, StageSummary}

// FileName returns the corpus filename a stage writes.
func (s Stage) FileName() string {
	switch s {
	case StageRawDescription:
		return "step1.json"
	case StageDescription:
		return "step2_des.json"
	case StageAnalysis:
		return "step2_analysis.json"
	case StageSummary:
		return "step3.json"
	}
	return string(s) + ".json"
}

// Request is one chat-style completion call: system instructions followed by
// a single user turn whose parts keep their original order.
type Request struct {
	Model       string
	System      string
	Parts       []*Part
	Temperature *float64
	Seed        *int64
}

// Invoker abstraction allows mocking, retrying, and swapping backends.
type Invoker interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// InvokerFunc adapts a plain function to Invoker.
type InvokerFunc func(ctx context.Context, req *Request) (string, error)

func (f InvokerFunc) Generate(ctx context.Context, req *Request) (string, error) { return f(ctx, req) }

// PromptProvider returns the system instructions for a stage tag.
type PromptProvider interface {
	GetPrompt(tag string, kind MediaKind) (string, error)
}

// Runner lets the pipeline schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// ProgressCallback is called after each instance of a stage finishes.
type ProgressCallback func(processed, total int, instanceID string)

// GenerationSettings are the sampling parameters sent with a stage's calls.
type GenerationSettings struct {
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`
}

// DefaultStageSettings mirrors the sampling used when the dataset was built:
// low temperature with a fixed seed for the description stages and provider
// defaults for the summary.
func DefaultStageSettings() map[Stage]GenerationSettings {
	return map[Stage]GenerationSettings{
		StageRawDescription: {Temperature: ptr(0.2), Seed: ptr[int64](42)},
		StageDescription:    {Temperature: ptr(0.3), Seed: ptr[int64](42)},
		StageAnalysis:       {Temperature: ptr(0.3), Seed: ptr[int64](42)},
		StageSummary:        {},
	}
}

// Options represents functional options for a pipeline.
type Options struct {
	Model       string
	Kind        MediaKind
	Layout      MediaLayout
	Concurrency int           // <=1 → sequential
	Timeout     time.Duration // per model call, 0 → none
	MaxRetries  int           // 0 → no retry
	Backoff     time.Duration // first retry delay, doubled per attempt
	FPS         float64       // frame-rate hint for video blocks
	Stages      map[Stage]GenerationSettings
	Progress    ProgressCallback
}

// Functional option constructors
func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithKind(kind MediaKind) func(*Options) {
	return func(o *Options) { o.Kind = kind }
}

func WithLayout(layout MediaLayout) func(*Options) {
	return func(o *Options) { o.Layout = layout }
}

func WithConcurrency(n int) func(*Options) {
	return func(o *Options) { o.Concurrency = n }
}

func WithTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Timeout = d }
}

func WithRetry(max int, backoff time.Duration) func(*Options) {
	return func(o *Options) {
		o.MaxRetries = max
		o.Backoff = backoff
	}
}

func WithFPS(fps float64) func(*Options) {
	return func(o *Options) { o.FPS = fps }
}

// WithStageSettings overrides the sampling parameters of one stage.
func WithStageSettings(stage Stage, s GenerationSettings) func(*Options) {
	return func(o *Options) {
		if o.Stages == nil {
			o.Stages = DefaultStageSettings()
		}
		o.Stages[stage] = s
	}
}

func WithProgress(fn ProgressCallback) func(*Options) {
	return func(o *Options) { o.Progress = fn }
}

func ptr[T any](v T) *T { return &v }
