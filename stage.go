package visualswe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// stageFunc produces one instance's record for a stage.
type stageFunc[R any] func(ctx context.Context, is *Issue) (R, error)

// runStage fans fn out over issues and gathers the results in input order.
// Instances found in existing are carried over without calling fn. A failed
// instance is logged, reported and left out; only cancellation of ctx stops
// the stage, in which case the records finished so far are still returned.
func runStage[R any](
	ctx context.Context,
	p *Pipeline,
	stage Stage,
	issues []*Issue,
	existing map[string]R,
	fn stageFunc[R],
) ([]R, *Report, error) {
	if len(issues) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", stage, ErrEmptyCorpus)
	}
	if p.opts.Model == "" {
		return nil, nil, fmt.Errorf("%s: %w", stage, ErrModelMissing)
	}

	report := newReport(p.runID, string(stage), p.opts.Kind, len(issues))
	log := p.log.With("stage", string(stage))
	log.Info("Stage started", "instances", len(issues), "resumable", len(existing))

	type slot struct {
		rec     R
		ok      bool
		resumed bool
		err     error
	}
	slots := make([]slot, len(issues))

	var (
		mu        sync.Mutex
		processed int
	)
	progress := func(id string) {
		if p.opts.Progress == nil {
			return
		}
		mu.Lock()
		processed++
		n := processed
		mu.Unlock()
		p.opts.Progress(n, len(issues), id)
	}

	r := p.runner(ctx)
	egCtx := ctx
	if d, ok := r.(*errGroupRunner); ok {
		egCtx = d.ctx
	}

	for i, is := range issues {
		if rec, ok := existing[is.InstanceID]; ok {
			slots[i] = slot{rec: rec, ok: true, resumed: true}
			log.Debug("Resumed instance", "instance_id", is.InstanceID)
			progress(is.InstanceID)
			continue
		}
		r.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rec, err := fn(egCtx, is)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				slots[i].err = err
				log.Warn("Skipping instance", "instance_id", is.InstanceID, "error", err)
			} else {
				slots[i].rec = rec
				slots[i].ok = true
				log.Debug("Instance completed", "instance_id", is.InstanceID)
			}
			progress(is.InstanceID)
			return nil
		})
	}
	waitErr := r.Wait()

	records := make([]R, 0, len(issues))
	for i, s := range slots {
		switch {
		case s.ok:
			records = append(records, s.rec)
			report.Succeeded++
			if s.resumed {
				report.Resumed++
			}
		case s.err != nil:
			report.skip(issues[i].InstanceID, s.err)
		}
	}
	report.finish()

	if waitErr != nil {
		log.Warn("Stage interrupted", "completed", len(records), "error", waitErr)
		return records, report, fmt.Errorf("%s interrupted: %w", stage, waitErr)
	}
	log.Info("Stage completed",
		"succeeded", report.Succeeded,
		"skipped", len(report.Skipped),
		"resumed", report.Resumed)
	return records, report, nil
}

// RawDescriptions asks the model to describe every media item on its own,
// one call per item.
func (p *Pipeline) RawDescriptions(ctx context.Context, issues []*Issue, existing ...RawDescriptionRecord) ([]RawDescriptionRecord, *Report, error) {
	done := make(map[string]RawDescriptionRecord, len(existing))
	for _, rec := range existing {
		done[rec.InstanceID] = rec
	}
	return runStage(ctx, p, StageRawDescription, issues, done, func(ctx context.Context, is *Issue) (RawDescriptionRecord, error) {
		system, err := p.prompt(StageRawDescription)
		if err != nil {
			return RawDescriptionRecord{}, err
		}
		segs := Scan(is.InstanceID, is.ProblemStatement, p.opts.Layout)
		items := make([]StageItem, 0, segs.MediaCount())
		for i, path := range segs.MediaPaths() {
			part, err := LoadMedia(path, p.opts.Kind, p.opts.FPS)
			if err != nil {
				return RawDescriptionRecord{}, err
			}
			text, err := p.call(ctx, StageRawDescription, system, []*Part{part})
			if err != nil {
				return RawDescriptionRecord{}, fmt.Errorf("%s %d: %w", p.opts.Kind, i, err)
			}
			items = append(items, StageItem{ItemID: indexLabel(i), RawDescription: text})
		}
		return RawDescriptionRecord{InstanceID: is.InstanceID, Items: items}, nil
	})
}

// Descriptions asks for one contextual description per media item, with the
// whole issue as context.
func (p *Pipeline) Descriptions(ctx context.Context, issues []*Issue, existing ...DescriptionRecord) ([]DescriptionRecord, *Report, error) {
	return p.contextual(ctx, StageDescription, "description", issues, existing)
}

// Analyses asks for one analysis per media item, with the whole issue as
// context.
func (p *Pipeline) Analyses(ctx context.Context, issues []*Issue, existing ...DescriptionRecord) ([]DescriptionRecord, *Report, error) {
	return p.contextual(ctx, StageAnalysis, "analysis", issues, existing)
}

func (p *Pipeline) contextual(ctx context.Context, stage Stage, field string, issues []*Issue, existing []DescriptionRecord) ([]DescriptionRecord, *Report, error) {
	done := make(map[string]DescriptionRecord, len(existing))
	for _, rec := range existing {
		done[rec.InstanceID] = rec
	}
	return runStage(ctx, p, stage, issues, done, func(ctx context.Context, is *Issue) (DescriptionRecord, error) {
		text, err := p.wholeIssue(ctx, stage, is)
		if err != nil {
			return DescriptionRecord{}, err
		}
		items, err := ExtractItems(text, field)
		if err != nil {
			p.log.Warn("Unparsable model output",
				"stage", string(stage),
				"instance_id", is.InstanceID,
				"output", preview(text, 2000))
			return DescriptionRecord{}, err
		}
		return DescriptionRecord{InstanceID: is.InstanceID, Items: items}, nil
	})
}

// Summaries asks for a structured summary of each issue.
func (p *Pipeline) Summaries(ctx context.Context, issues []*Issue, existing ...SummaryRecord) ([]SummaryRecord, *Report, error) {
	done := make(map[string]SummaryRecord, len(existing))
	for _, rec := range existing {
		done[rec.InstanceID] = rec
	}
	return runStage(ctx, p, StageSummary, issues, done, func(ctx context.Context, is *Issue) (SummaryRecord, error) {
		text, err := p.wholeIssue(ctx, StageSummary, is)
		if err != nil {
			return SummaryRecord{}, err
		}
		summary, err := ExtractFenced(text)
		if err != nil {
			p.log.Warn("Unparsable model output",
				"stage", string(StageSummary),
				"instance_id", is.InstanceID,
				"output", preview(text, 2000))
			return SummaryRecord{}, err
		}
		return SummaryRecord{InstanceID: is.InstanceID, Summary: summary}, nil
	})
}

// wholeIssue sends the full interleaved statement in one call.
func (p *Pipeline) wholeIssue(ctx context.Context, stage Stage, is *Issue) (string, error) {
	system, err := p.prompt(stage)
	if err != nil {
		return "", err
	}
	segs := Scan(is.InstanceID, is.ProblemStatement, p.opts.Layout)
	parts, err := BuildParts(segs, p.opts.Kind, p.opts.FPS)
	if err != nil {
		return "", err
	}
	p.log.Debug("Built request",
		"stage", string(stage),
		"instance_id", is.InstanceID,
		"parts", len(parts),
		"media", segs.MediaCount())
	return p.call(ctx, stage, system, parts)
}

// StageResult is the outcome of one stage written to disk.
type StageResult struct {
	Stage  Stage
	Path   string
	Report *Report
}

// RunStage runs one stage and writes its file, plus a report, into outDir.
// With resume set, records already present in that file are reused. Partial
// output is written before an interruption is returned.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage, issues []*Issue, outDir string, resume bool) (*StageResult, error) {
	path := filepath.Join(outDir, stage.FileName())

	var (
		records any
		report  *Report
		runErr  error
	)
	switch stage {
	case StageRawDescription:
		prev, err := loadExisting[RawDescriptionRecord](path, resume)
		if err != nil {
			return nil, err
		}
		records, report, runErr = p.RawDescriptions(ctx, issues, prev...)
	case StageDescription, StageAnalysis:
		prev, err := loadExisting[DescriptionRecord](path, resume)
		if err != nil {
			return nil, err
		}
		if stage == StageDescription {
			records, report, runErr = p.Descriptions(ctx, issues, prev...)
		} else {
			records, report, runErr = p.Analyses(ctx, issues, prev...)
		}
	case StageSummary:
		prev, err := loadExisting[SummaryRecord](path, resume)
		if err != nil {
			return nil, err
		}
		records, report, runErr = p.Summaries(ctx, issues, prev...)
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	if report == nil {
		return nil, runErr
	}

	if err := WriteJSON(path, records); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	if err := report.WriteFile(ReportPath(path)); err != nil {
		return nil, err
	}
	p.log.Info("Wrote stage output", "stage", string(stage), "path", path, "summary", report.String())
	return &StageResult{Stage: stage, Path: path, Report: report}, runErr
}

// RunAll runs the four stages in order, stopping at the first stage that is
// interrupted or cannot write its output.
func (p *Pipeline) RunAll(ctx context.Context, issues []*Issue, outDir string, resume bool) ([]StageResult, error) {
	var results []StageResult
	for _, stage := range Stages {
		res, err := p.RunStage(ctx, stage, issues, outDir, resume)
		if res != nil {
			results = append(results, *res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// loadExisting reads a stage file for resuming. A missing file is not an
// error.
func loadExisting[R any](path string, resume bool) ([]R, error) {
	if !resume {
		return nil, nil
	}
	recs, err := ReadJSON[R](path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return recs, nil
}
