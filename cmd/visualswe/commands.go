package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vivaneiona/visualswe"
)

// stageFlags are shared by the commands that call the endpoint.
type stageFlags struct {
	dataset   string
	outFolder string
	resume    bool
}

func (f *stageFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dataset, "dataset", "", "input corpus (JSON array of issues)")
	cmd.Flags().StringVar(&f.outFolder, "out-folder", "", "output folder (defaults to the model name)")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "reuse records already present in the output file")
	_ = cmd.MarkFlagRequired("dataset")
}

func (a *app) stageCmd(use, short string, stage visualswe.Stage) *cobra.Command {
	var f stageFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStages(cmd, &f, stage)
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) contextualizeCmd() *cobra.Command {
	var (
		f      stageFlags
		aspect string
	)
	cmd := &cobra.Command{
		Use:   "contextualize",
		Short: "Describe or analyze each media item in the context of its issue (step2)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch aspect {
			case "description":
				return a.runStages(cmd, &f, visualswe.StageDescription)
			case "analysis":
				return a.runStages(cmd, &f, visualswe.StageAnalysis)
			}
			return fmt.Errorf("invalid --aspect %q: want description or analysis", aspect)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&aspect, "aspect", "description", "description or analysis")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var f stageFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStages(cmd, &f, visualswe.Stages...)
		},
	}
	f.bind(cmd)
	return cmd
}

// runStages runs the given stages against the dataset. A single stage is run
// through RunStage so only its file is touched.
func (a *app) runStages(cmd *cobra.Command, f *stageFlags, stages ...visualswe.Stage) error {
	ctx := cmd.Context()
	p, cfg, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	issues, err := visualswe.ReadIssues(f.dataset)
	if err != nil {
		return err
	}
	out := f.outFolder
	if out == "" {
		out = defaultOutFolder(cfg.Endpoint.Model)
	}
	a.log.Info("Starting run",
		"run_id", p.RunID(),
		"dataset", f.dataset,
		"instances", len(issues),
		"out_folder", out,
		"model", cfg.Endpoint.Model)

	for _, stage := range stages {
		res, err := p.RunStage(ctx, stage, issues, out, f.resume)
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Path, res.Report)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) assembleCmd() *cobra.Command {
	var dataset, inFolder, outDir string
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Fold the stage outputs back into problem statements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			issues, err := visualswe.ReadIssues(dataset)
			if err != nil {
				return err
			}
			if inFolder == "" {
				inFolder = defaultOutFolder(cfg.Endpoint.Model)
			}
			if outDir == "" {
				outDir = inFolder
			}
			report, err := visualswe.NewAssembler(cfg.Kind, a.log).AssembleFolder(issues, inFolder, outDir)
			if report != nil {
				fmt.Fprintln(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "input corpus the stages were run on")
	cmd.Flags().StringVar(&inFolder, "in-folder", "", "folder holding the stage files (defaults to the model name)")
	cmd.Flags().StringVar(&outDir, "out", "", "output folder (defaults to --in-folder)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func (a *app) mergeCmd() *cobra.Command {
	var file1, file2, out string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Concatenate two JSON array corpora",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := visualswe.MergeFiles(file1, file2, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d records into %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&file1, "file1", "", "first corpus")
	cmd.Flags().StringVar(&file2, "file2", "", "second corpus")
	cmd.Flags().StringVar(&out, "out", visualswe.DefaultMergeOutput, "output file")
	_ = cmd.MarkFlagRequired("file1")
	_ = cmd.MarkFlagRequired("file2")
	return cmd
}

func (a *app) filterCmd() *cobra.Command {
	var dataset, ids, out string
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Select issues by instance id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := readIDs(ids)
			if err != nil {
				return err
			}
			n, err := visualswe.FilterFile(dataset, out, list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d issues to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "input corpus")
	cmd.Flags().StringVar(&ids, "ids", "", "comma-separated instance ids, or @file with one id per line")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("ids")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// readIDs parses "a,b,c" or "@path" into a list of ids.
func readIDs(arg string) ([]string, error) {
	sep := ","
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		arg, sep = string(b), "\n"
	}
	var ids []string
	for _, id := range strings.Split(arg, sep) {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no instance ids given")
	}
	return ids, nil
}

func (a *app) planCmd() *cobra.Command {
	var dataset, format string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Estimate calls and tokens for a run without calling the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			issues, err := visualswe.ReadIssues(dataset)
			if err != nil {
				return err
			}
			prompts, err := visualswe.DefaultPrompts()
			if err != nil {
				return err
			}
			inv := visualswe.InvokerFunc(func(context.Context, *visualswe.Request) (string, error) {
				return "", fmt.Errorf("plan does not call the endpoint")
			})
			p := visualswe.NewWithLogger(inv, prompts, a.log, cfg.PipelineOptions()...)
			plan, err := p.Explain(issues, visualswe.FormatType(format), visualswe.DefaultModelPricing())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "input corpus")
	cmd.Flags().StringVar(&format, "format", string(visualswe.FormatText), "text or json")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}
