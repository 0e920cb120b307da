package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vivaneiona/visualswe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// app holds the global flags shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	logLevel   string
	noColor    bool

	provider    string
	baseURL     string
	model       string
	kind        string
	mediaRoot   string
	promptsDir  string
	concurrency int

	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "visualswe",
		Short:         "Describe the media of multimodal issues and fold it back into text",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored log output")
	pf.StringVar(&a.provider, "provider", "", "endpoint provider: openai or gemini")
	pf.StringVar(&a.baseURL, "base-url", "", "endpoint base URL")
	pf.StringVar(&a.model, "model", "", "model name")
	pf.StringVar(&a.kind, "kind", "", "media kind: image or video")
	pf.StringVar(&a.mediaRoot, "media-root", "", "directory holding <instance_id>/<media files>")
	pf.StringVar(&a.promptsDir, "prompts-dir", "", "directory of *.twig prompt overrides")
	pf.IntVar(&a.concurrency, "concurrency", 0, "instances processed in parallel")

	root.AddCommand(
		a.stageCmd("describe", "Describe every media item on its own (step1)", visualswe.StageRawDescription),
		a.contextualizeCmd(),
		a.stageCmd("summarize", "Summarize each issue as structured JSON (step3)", visualswe.StageSummary),
		a.runCmd(),
		a.assembleCmd(),
		a.mergeCmd(),
		a.filterCmd(),
		a.planCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", a.logLevel)
	}
	a.log = slog.New(tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:   level,
		NoColor: a.noColor,
	}))
	slog.SetDefault(a.log)
	return nil
}

// config loads the config file and environment, then applies flags.
func (a *app) config() (visualswe.Config, error) {
	cfg, err := visualswe.LoadConfig(a.configPath)
	if err != nil {
		return cfg, err
	}
	if a.provider != "" {
		cfg.Endpoint.Provider = a.provider
	}
	if a.baseURL != "" {
		cfg.Endpoint.BaseURL = a.baseURL
	}
	if a.model != "" {
		cfg.Endpoint.Model = a.model
	}
	if a.kind != "" {
		kind, err := visualswe.ParseMediaKind(a.kind)
		if err != nil {
			return cfg, err
		}
		cfg.Kind = kind
	}
	if a.mediaRoot != "" {
		cfg.Layout.Root = a.mediaRoot
	}
	if a.promptsDir != "" {
		cfg.PromptsDir = a.promptsDir
	}
	if a.concurrency > 0 {
		cfg.Concurrency = a.concurrency
	}
	return cfg, nil
}

// pipeline builds the configured pipeline, logging progress per instance.
func (a *app) pipeline(ctx context.Context) (*visualswe.Pipeline, visualswe.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, err
	}
	inv, err := visualswe.NewInvoker(ctx, cfg.Endpoint, a.log)
	if err != nil {
		return nil, cfg, err
	}
	var popts []visualswe.Option
	if cfg.PromptsDir != "" {
		popts = append(popts, visualswe.WithFS(os.DirFS(cfg.PromptsDir), "."))
	}
	prompts, err := visualswe.DefaultPrompts(popts...)
	if err != nil {
		return nil, cfg, fmt.Errorf("load prompts: %w", err)
	}

	opts := append(cfg.PipelineOptions(), visualswe.WithProgress(func(processed, total int, id string) {
		a.log.Info("Progress", "processed", processed, "total", total, "instance_id", id)
	}))
	return visualswe.NewWithLogger(inv, prompts, a.log, opts...), cfg, nil
}

// defaultOutFolder names the output folder after the model, as a path-safe
// base name.
func defaultOutFolder(model string) string {
	name := filepath.Base(strings.TrimRight(model, "/"))
	if name == "." || name == "/" || name == "" {
		return "output"
	}
	return name
}
