package visualswe

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

const summaryHeader = "\n### Issue Summary (Structured)"

// OutputFileName returns the enriched corpus filename for a media kind.
func OutputFileName(kind MediaKind) string {
	return "data_with_" + string(kind) + ".json"
}

// Assembler collapses a segmented problem statement and its stage outputs
// into one enriched statement.
type Assembler struct {
	Kind MediaKind
	log  *slog.Logger
}

// NewAssembler returns an Assembler for kind. A nil logger means slog.Default().
func NewAssembler(kind MediaKind, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{Kind: kind, log: log}
}

// FormatBlock renders the details block of one media item, without the
// leading introduction line.
func (a *Assembler) FormatBlock(item MediaItem) string {
	label := a.Kind.Label()
	var b strings.Builder
	b.WriteString("**" + label + " Details:**\n")
	b.WriteString("---\n")
	b.WriteString("- **" + label + " ID**: " + item.ID + "\n")
	b.WriteString("- **Raw Description**: \n")
	b.WriteString(item.RawDescription + "\n")
	b.WriteString("- **Contextual Description**: \n")
	b.WriteString(item.Description + "\n")
	b.WriteString("- **Analysis**: \n")
	b.WriteString(item.Analysis + "\n")
	b.WriteString("---")
	return strings.TrimSpace(b.String())
}

func (a *Assembler) intro() string {
	return "This " + string(a.Kind) + " is part of the problem description. Here is the relevant information:\n"
}

// AssembleStatement builds the enriched statement: text segments verbatim,
// each media segment replaced by its details block, then the structured
// summary as a bullet list in the model's key order.
func (a *Assembler) AssembleStatement(statement []string, jd *Joined) (string, error) {
	if err := jd.Validate(CountMedia(statement)); err != nil {
		return "", err
	}

	var b strings.Builder
	index := 0
	for _, seg := range statement {
		if !IsMediaSegment(seg) {
			b.WriteString(seg)
			continue
		}
		b.WriteString(a.intro())
		b.WriteString(a.FormatBlock(jd.Item(index)))
		index++
	}

	b.WriteString(summaryHeader)
	for pair := jd.Summary.Oldest(); pair != nil; pair = pair.Next() {
		b.WriteString("\n- **" + pair.Key + "**: " + renderValue(pair.Value))
	}
	return b.String(), nil
}

// Assemble joins and assembles a single issue, returning a new record whose
// problem_statement is the collapsed string.
func (a *Assembler) Assemble(is *Issue, j *Joiner) (*Issue, error) {
	jd, err := j.Join(is.InstanceID)
	if err != nil {
		return nil, err
	}
	statement, err := a.AssembleStatement(is.ProblemStatement, jd)
	if err != nil {
		return nil, err
	}
	return is.WithStatement(statement)
}

// AssembleCorpus assembles every issue. Instances that cannot be joined or
// validated are left out and listed in the report; the batch continues.
func (a *Assembler) AssembleCorpus(issues []*Issue, j *Joiner) ([]*Issue, *Report) {
	report := newReport("", "assemble", a.Kind, len(issues))
	log := a.log.With("run_id", report.RunID)
	out := make([]*Issue, 0, len(issues))
	for _, is := range issues {
		enriched, err := a.Assemble(is, j)
		if err != nil {
			log.Warn("Skipping instance", "instance_id", is.InstanceID, "error", err)
			report.skip(is.InstanceID, err)
			continue
		}
		out = append(out, enriched)
		report.Succeeded++
	}
	log.Info("Assembly completed", "succeeded", report.Succeeded, "skipped", len(report.Skipped))
	return out, report.finish()
}

// AssembleFolder reads the four stage files from folder, assembles issues
// and writes the enriched corpus plus its report into outDir.
func (a *Assembler) AssembleFolder(issues []*Issue, folder, outDir string) (*Report, error) {
	j, err := LoadJoiner(folder)
	if err != nil {
		return nil, err
	}
	out, report := a.AssembleCorpus(issues, j)
	path := filepath.Join(outDir, OutputFileName(a.Kind))
	if err := WriteJSON(path, out); err != nil {
		return report, fmt.Errorf("write %s: %w", path, err)
	}
	if err := report.WriteFile(ReportPath(path)); err != nil {
		return report, err
	}
	return report, nil
}
