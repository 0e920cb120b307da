package visualswe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrEmptyCorpus is returned when a corpus holds no records.
	ErrEmptyCorpus = errors.New("corpus is empty")
	// ErrModelMissing is returned when no model name is configured.
	ErrModelMissing = errors.New("model not specified")
	// ErrMissingRecord is returned when a stage corpus lacks an instance.
	ErrMissingRecord = errors.New("missing stage record")
	// ErrCountMismatch is returned when a stage list does not have one entry per media item.
	ErrCountMismatch = errors.New("stage list length does not match media count")
	// ErrIncompleteItem is returned when a stage entry lacks its payload field.
	ErrIncompleteItem = errors.New("stage entry is missing its payload")
	// ErrMalformedObject is returned when model output holds an unparsable JSON object.
	ErrMalformedObject = errors.New("malformed JSON object in model output")
	// ErrNoFence is returned when model output lacks the fenced block layout.
	ErrNoFence = errors.New("model output has no fenced JSON block")
	// ErrNoChoices is returned when the endpoint answers without any choice.
	ErrNoChoices = errors.New("model returned no choices")
	// ErrMediaUnreadable is returned when a local media file cannot be read.
	ErrMediaUnreadable = errors.New("media file unreadable")
)

// Pipeline runs the enrichment stages over a corpus of issues.
type Pipeline struct {
	invoker Invoker
	prompts PromptProvider
	log     *slog.Logger
	opts    Options
	runID   string
}

// New returns a Pipeline that logs with slog.Default().
func New(inv Invoker, p PromptProvider, optFns ...func(*Options)) *Pipeline {
	return NewWithLogger(inv, p, slog.Default(), optFns...)
}

// NewWithLogger lets the caller supply their own logger.
func NewWithLogger(inv Invoker, p PromptProvider, log *slog.Logger, optFns ...func(*Options)) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.Kind.Valid() {
		opts.Kind = MediaImage
	}
	opts.Layout = opts.Layout.withDefaults(opts.Kind)
	if opts.FPS <= 0 {
		opts.FPS = 1.0
	}
	runID := uuid.NewString()
	log = log.With("run_id", runID, "kind", string(opts.Kind))
	log.Debug("Pipeline configured",
		"model", opts.Model,
		"concurrency", opts.Concurrency,
		"timeout", opts.Timeout,
		"max_retries", opts.MaxRetries,
		"backoff", opts.Backoff,
		"media_root", opts.Layout.Root)
	return &Pipeline{invoker: inv, prompts: p, log: log, opts: opts, runID: runID}
}

func defaultOptions() Options {
	return Options{
		Kind:        MediaImage,
		Concurrency: 1,
		FPS:         1.0,
		Stages:      DefaultStageSettings(),
	}
}

// RunID identifies this pipeline in logs and reports.
func (p *Pipeline) RunID() string { return p.runID }

// Kind returns the media kind the pipeline processes.
func (p *Pipeline) Kind() MediaKind { return p.opts.Kind }

// Layout returns the resolved media layout.
func (p *Pipeline) Layout() MediaLayout { return p.opts.Layout }

func (p *Pipeline) runner(ctx context.Context) Runner {
	if p.opts.Concurrency <= 1 {
		return DefaultRunner(ctx)
	}
	return NewLimitedRunner(ctx, p.opts.Concurrency)
}

// prompt fetches a stage's system instructions.
func (p *Pipeline) prompt(stage Stage) (string, error) {
	tpl, err := p.prompts.GetPrompt(string(stage), p.opts.Kind)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", stage, err)
	}
	return tpl, nil
}

// call sends one request with the stage's sampling settings, applying the
// per-call timeout and the retry policy.
func (p *Pipeline) call(ctx context.Context, stage Stage, system string, parts []*Part) (string, error) {
	s := p.opts.Stages[stage]
	req := &Request{
		Model:       p.opts.Model,
		System:      system,
		Parts:       parts,
		Temperature: s.Temperature,
		Seed:        s.Seed,
	}

	var out string
	err := retryable(ctx, func() error {
		cctx := ctx
		if p.opts.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
			defer cancel()
		}
		text, err := p.invoker.Generate(cctx, req)
		if err != nil {
			p.log.Debug("Generate failed", "stage", stage, "model", req.Model, "error", err)
			return err
		}
		out = text
		return nil
	}, p.opts.MaxRetries, p.opts.Backoff, p.log)
	if err != nil {
		return "", err
	}
	p.log.Debug("Received response", "stage", stage, "response_length", len(out))
	return out, nil
}
