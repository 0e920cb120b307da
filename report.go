package visualswe

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SkipReason records why an instance was left out of a stage's output.
type SkipReason struct {
	InstanceID string `json:"instance_id"`
	Reason     string `json:"reason"`
}

// Report summarizes one stage or assembly run.
type Report struct {
	RunID      string       `json:"run_id"`
	Stage      string       `json:"stage"`
	Kind       MediaKind    `json:"kind"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Resumed    int          `json:"resumed,omitempty"`
	Skipped    []SkipReason `json:"skipped"`
}

func newReport(runID, stage string, kind MediaKind, total int) *Report {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Report{
		RunID:     runID,
		Stage:     stage,
		Kind:      kind,
		StartedAt: time.Now().UTC(),
		Total:     total,
		Skipped:   []SkipReason{},
	}
}

func (r *Report) skip(instanceID string, err error) {
	r.Skipped = append(r.Skipped, SkipReason{InstanceID: instanceID, Reason: err.Error()})
}

func (r *Report) finish() *Report {
	r.FinishedAt = time.Now().UTC()
	return r
}

// SkippedIDs lists the skipped instance ids in input order.
func (r *Report) SkippedIDs() []string {
	ids := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		ids[i] = s.InstanceID
	}
	return ids
}

// String renders a one-line summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d/%d succeeded", r.Stage, r.Succeeded, r.Total)
	if r.Resumed > 0 {
		fmt.Fprintf(&b, " (%d resumed)", r.Resumed)
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped", len(r.Skipped))
	}
	return b.String()
}

// ReportPath returns the report file written next to a corpus file:
// step1.json → step1.report.json.
func ReportPath(corpusPath string) string {
	ext := filepath.Ext(corpusPath)
	return strings.TrimSuffix(corpusPath, ext) + ".report" + ext
}

// WriteFile stores the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	return WriteJSON(path, r)
}
