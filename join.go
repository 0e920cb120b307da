package visualswe

import (
	"fmt"
	"strings"
)

// Corpus names used in join errors.
const (
	CorpusRawDescriptions = "raw descriptions"
	CorpusDescriptions    = "descriptions"
	CorpusAnalyses        = "analyses"
	CorpusSummaries       = "summaries"
)

// Joiner indexes the four stage corpora by instance id. When an id occurs
// more than once in a corpus the first record wins.
type Joiner struct {
	raw       map[string]*RawDescriptionRecord
	desc      map[string]*DescriptionRecord
	analysis  map[string]*DescriptionRecord
	summaries map[string]*SummaryRecord
}

// NewJoiner builds the lookup tables once; Join is then O(1) per instance.
func NewJoiner(raw []RawDescriptionRecord, desc, analysis []DescriptionRecord, summaries []SummaryRecord) *Joiner {
	j := &Joiner{
		raw:       make(map[string]*RawDescriptionRecord, len(raw)),
		desc:      make(map[string]*DescriptionRecord, len(desc)),
		analysis:  make(map[string]*DescriptionRecord, len(analysis)),
		summaries: make(map[string]*SummaryRecord, len(summaries)),
	}
	for i := range raw {
		if _, ok := j.raw[raw[i].InstanceID]; !ok {
			j.raw[raw[i].InstanceID] = &raw[i]
		}
	}
	for i := range desc {
		if _, ok := j.desc[desc[i].InstanceID]; !ok {
			j.desc[desc[i].InstanceID] = &desc[i]
		}
	}
	for i := range analysis {
		if _, ok := j.analysis[analysis[i].InstanceID]; !ok {
			j.analysis[analysis[i].InstanceID] = &analysis[i]
		}
	}
	for i := range summaries {
		if _, ok := j.summaries[summaries[i].InstanceID]; !ok {
			j.summaries[summaries[i].InstanceID] = &summaries[i]
		}
	}
	return j
}

// Joined is the per-instance view over all four stage corpora.
type Joined struct {
	InstanceID      string
	RawDescriptions []StageItem
	Descriptions    []StageItem
	Analyses        []StageItem
	Summary         *Object
}

// Join looks an instance up in every corpus. The error names each corpus
// that lacks it.
func (j *Joiner) Join(instanceID string) (*Joined, error) {
	var missing []string
	raw, ok := j.raw[instanceID]
	if !ok {
		missing = append(missing, CorpusRawDescriptions)
	}
	desc, ok := j.desc[instanceID]
	if !ok {
		missing = append(missing, CorpusDescriptions)
	}
	analysis, ok := j.analysis[instanceID]
	if !ok {
		missing = append(missing, CorpusAnalyses)
	}
	sum, ok := j.summaries[instanceID]
	if !ok {
		missing = append(missing, CorpusSummaries)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: %w in %s", instanceID, ErrMissingRecord, strings.Join(missing, ", "))
	}
	return &Joined{
		InstanceID:      instanceID,
		RawDescriptions: raw.Items,
		Descriptions:    desc.Items,
		Analyses:        analysis.Items,
		Summary:         sum.Summary,
	}, nil
}

// Validate checks that every list carries exactly one entry per media item
// and that each entry has its payload.
func (jd *Joined) Validate(mediaCount int) error {
	lists := []struct {
		name  string
		items []StageItem
		field func(StageItem) string
	}{
		{CorpusRawDescriptions, jd.RawDescriptions, func(it StageItem) string { return it.RawDescription }},
		{CorpusDescriptions, jd.Descriptions, func(it StageItem) string { return it.Description }},
		{CorpusAnalyses, jd.Analyses, func(it StageItem) string { return it.Analysis }},
	}
	for _, l := range lists {
		if len(l.items) != mediaCount {
			return fmt.Errorf("%s: %s has %d entries for %d media items: %w",
				jd.InstanceID, l.name, len(l.items), mediaCount, ErrCountMismatch)
		}
	}
	for _, l := range lists[1:] {
		for i, it := range l.items {
			if l.field(it) == "" {
				return fmt.Errorf("%s: %s entry %d: %w", jd.InstanceID, l.name, i, ErrIncompleteItem)
			}
		}
	}
	if jd.Summary == nil {
		return fmt.Errorf("%s: %s: %w", jd.InstanceID, CorpusSummaries, ErrIncompleteItem)
	}
	return nil
}

// MediaItem is everything known about one media item, addressed by its
// position among the instance's media segments.
type MediaItem struct {
	Index          int
	ID             string
	RawDescription string
	Description    string
	Analysis       string
}

// Item returns the index-th media item. Callers validate first.
func (jd *Joined) Item(index int) MediaItem {
	raw := jd.RawDescriptions[index]
	desc := jd.Descriptions[index]
	ana := jd.Analyses[index]
	id := desc.ItemID
	if id == "" {
		id = ana.ItemID
	}
	if id == "" {
		id = indexLabel(index + 1)
	}
	return MediaItem{
		Index:          index,
		ID:             id,
		RawDescription: raw.RawDescription,
		Description:    desc.Description,
		Analysis:       ana.Analysis,
	}
}
