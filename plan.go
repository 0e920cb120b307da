package visualswe

import (
	"fmt"
	"sort"
)

// Rough per-item token costs of media blocks.
const (
	imageTokenEstimate = 768
	videoTokenEstimate = 4096
)

// Rough output lengths per call or per media item.
const (
	rawDescriptionOutputTokens = 300
	perItemOutputTokens        = 200
	summaryOutputTokens        = 400
)

// ExecutionStats describes the model calls a run would make.
type ExecutionStats struct {
	Instances         int              `json:"instances"`         // Issues in the corpus
	MediaItems        int              `json:"mediaItems"`        // Media segments across all issues
	MissingMedia      int              `json:"missingMedia"`      // Media files not found on disk
	MediaBytes        int64            `json:"mediaBytes"`        // Size of the media files found
	ModelCalls        map[string]int   `json:"modelCalls"`        // Number of calls per model
	Stages            []StageExecution `json:"stages"`            // Per-stage details, in run order
	TotalInputTokens  int              `json:"totalInputTokens"`  // Total input tokens (estimated)
	TotalOutputTokens int              `json:"totalOutputTokens"` // Total output tokens (estimated)
}

// StageExecution represents statistics for a single stage.
type StageExecution struct {
	Stage        Stage  `json:"stage"`
	Model        string `json:"model"`
	Calls        int    `json:"calls"`
	MediaItems   int    `json:"mediaItems"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
}

// PlanNodeType defines the type of operation a node represents.
type PlanNodeType string

const (
	CorpusScanType PlanNodeType = "CorpusScan"
	ModelCallType  PlanNodeType = "ModelCall"
	AssembleType   PlanNodeType = "Assemble"
)

// PlanNode represents a node in the execution plan.
type PlanNode struct {
	Type         PlanNodeType `json:"type"`
	Stage        Stage        `json:"stage,omitempty"`
	Model        string       `json:"model,omitempty"`
	Calls        int          `json:"calls,omitempty"`
	Instances    int          `json:"instances,omitempty"`
	MediaItems   int          `json:"mediaItems,omitempty"`
	MissingMedia int          `json:"missingMedia,omitempty"`
	InputTokens  int          `json:"inputTokens,omitempty"`
	OutputTokens int          `json:"outputTokens,omitempty"`
	ActCost      *float64     `json:"actCost,omitempty"` // USD, when the model has a known price
	Children     []*PlanNode  `json:"children,omitempty"`
	// Summary information (populated for root nodes)
	ExpectedModels     []string       `json:"expectedModels,omitempty"`
	ExpectedCallCounts map[string]int `json:"expectedCallCounts,omitempty"`
}

// ModelPrice represents the pricing for a specific model.
type ModelPrice struct {
	PromptTokCost     float64 // Cost per 1000 input tokens
	CompletionTokCost float64 // Cost per 1000 output tokens
}

// FormatType represents different output formats for the execution plan.
type FormatType string

const (
	FormatText FormatType = "text"
	FormatJSON FormatType = "json"
)

// DryRun estimates every stage's calls and tokens without contacting the
// endpoint. Media files are only checked for existence.
func (p *Pipeline) DryRun(issues []*Issue) (*ExecutionStats, error) {
	if len(issues) == 0 {
		return nil, fmt.Errorf("dry run: %w", ErrEmptyCorpus)
	}
	if p.opts.Model == "" {
		return nil, fmt.Errorf("dry run: %w", ErrModelMissing)
	}

	perMedia := imageTokenEstimate
	if p.opts.Kind == MediaVideo {
		perMedia = videoTokenEstimate
	}

	stats := &ExecutionStats{
		Instances:  len(issues),
		ModelCalls: make(map[string]int),
	}
	byStage := make(map[Stage]*StageExecution, len(Stages))
	for _, stage := range Stages {
		byStage[stage] = &StageExecution{Stage: stage, Model: p.opts.Model}
	}
	promptTokens := make(map[Stage]int, len(Stages))
	for _, stage := range Stages {
		tpl, err := p.prompt(stage)
		if err != nil {
			p.log.Debug("Failed to get prompt template", "stage", stage, "error", err)
			continue
		}
		promptTokens[stage] = EstimateTokensFromText(tpl)
	}

	for _, is := range issues {
		segs := Scan(is.InstanceID, is.ProblemStatement, p.opts.Layout)
		media := segs.MediaCount()
		stats.MediaItems += media
		for _, path := range segs.MediaPaths() {
			meta, err := StatMedia(path, p.opts.Kind)
			if err != nil {
				stats.MissingMedia++
				continue
			}
			stats.MediaBytes += meta.Size
		}
		textTokens := 0
		for i, item := range segs.Items {
			if segs.Kinds[i] == SegmentText {
				textTokens += EstimateTokensFromText(item)
			}
		}

		raw := byStage[StageRawDescription]
		raw.Calls += media
		raw.MediaItems += media
		raw.InputTokens += media * (promptTokens[StageRawDescription] + perMedia)
		raw.OutputTokens += media * rawDescriptionOutputTokens

		for _, stage := range []Stage{StageDescription, StageAnalysis, StageSummary} {
			se := byStage[stage]
			se.Calls++
			se.MediaItems += media
			se.InputTokens += promptTokens[stage] + textTokens + media*perMedia
			if stage == StageSummary {
				se.OutputTokens += summaryOutputTokens
			} else {
				se.OutputTokens += media * perItemOutputTokens
			}
		}
	}

	for _, stage := range Stages {
		se := byStage[stage]
		stats.Stages = append(stats.Stages, *se)
		stats.ModelCalls[se.Model] += se.Calls
		stats.TotalInputTokens += se.InputTokens
		stats.TotalOutputTokens += se.OutputTokens
	}

	p.log.Info("Dry run completed",
		"instances", stats.Instances,
		"media_items", stats.MediaItems,
		"missing_media", stats.MissingMedia,
		"media_bytes", stats.MediaBytes,
		"total_input_tokens", stats.TotalInputTokens,
		"total_output_tokens", stats.TotalOutputTokens)
	return stats, nil
}

// Explain performs a dry run and formats the resulting plan.
func (p *Pipeline) Explain(issues []*Issue, format FormatType, pricing map[string]ModelPrice) (string, error) {
	stats, err := p.DryRun(issues)
	if err != nil {
		return "", err
	}
	pb := NewPlanBuilder().WithPricing(pricing)
	return pb.FormatPlan(pb.Build(stats), format)
}

// PlanBuilder turns execution statistics into a plan tree.
// Note: PlanBuilder is not thread-safe. Create separate instances for concurrent use.
type PlanBuilder struct {
	pricing map[string]ModelPrice
}

// NewPlanBuilder creates a new plan builder.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{}
}

// WithPricing enables USD estimates for models with a known price.
func (pb *PlanBuilder) WithPricing(pricing map[string]ModelPrice) *PlanBuilder {
	pb.pricing = pricing
	return pb
}

// Build creates the plan: a corpus scan root, one node per stage, then the
// assembly step.
func (pb *PlanBuilder) Build(stats *ExecutionStats) *PlanNode {
	root := &PlanNode{
		Type:               CorpusScanType,
		Instances:          stats.Instances,
		MediaItems:         stats.MediaItems,
		MissingMedia:       stats.MissingMedia,
		InputTokens:        stats.TotalInputTokens,
		OutputTokens:       stats.TotalOutputTokens,
		ExpectedCallCounts: stats.ModelCalls,
	}
	for model := range stats.ModelCalls {
		root.ExpectedModels = append(root.ExpectedModels, model)
	}
	sort.Strings(root.ExpectedModels)

	var total float64
	priced := false
	for _, se := range stats.Stages {
		node := &PlanNode{
			Type:         ModelCallType,
			Stage:        se.Stage,
			Model:        se.Model,
			Calls:        se.Calls,
			MediaItems:   se.MediaItems,
			InputTokens:  se.InputTokens,
			OutputTokens: se.OutputTokens,
		}
		if cost, ok := pb.calculateActualCost(node); ok {
			node.ActCost = &cost
			total += cost
			priced = true
		}
		root.Children = append(root.Children, node)
	}
	root.Children = append(root.Children, &PlanNode{
		Type:      AssembleType,
		Instances: stats.Instances,
	})
	if priced {
		root.ActCost = &total
	}
	return root
}

// calculateActualCost calculates the real cost in USD for a node.
func (pb *PlanBuilder) calculateActualCost(node *PlanNode) (float64, bool) {
	if node.Type != ModelCallType || pb.pricing == nil {
		return 0, false
	}
	price, exists := pb.pricing[node.Model]
	if !exists {
		return 0, false
	}
	inputCost := float64(node.InputTokens) * price.PromptTokCost / 1000.0
	outputCost := float64(node.OutputTokens) * price.CompletionTokCost / 1000.0
	return inputCost + outputCost, true
}

// FormatPlan formats a plan according to the specified format.
func (pb *PlanBuilder) FormatPlan(plan *PlanNode, format FormatType) (string, error) {
	switch format {
	case FormatText, "":
		return pb.formatAsText(plan), nil
	case FormatJSON:
		return pb.formatAsJSON(plan)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// DefaultModelPricing returns input/output token costs (USD per 1K tokens)
// for common vision models.
func DefaultModelPricing() map[string]ModelPrice {
	return map[string]ModelPrice{
		"gpt-4o":           {PromptTokCost: 0.0050, CompletionTokCost: 0.0200},
		"gpt-4o-mini":      {PromptTokCost: 0.0006, CompletionTokCost: 0.0024},
		"gpt-4.1":          {PromptTokCost: 0.0020, CompletionTokCost: 0.0080},
		"gpt-4.1-mini":     {PromptTokCost: 0.0004, CompletionTokCost: 0.0016},
		"gemini-2.5-pro":   {PromptTokCost: 0.00125, CompletionTokCost: 0.0100},
		"gemini-2.5-flash": {PromptTokCost: 0.00030, CompletionTokCost: 0.0025},
		"gemini-2.0-flash": {PromptTokCost: 0.00015, CompletionTokCost: 0.0006},
	}
}

// EstimateTokensFromText provides a rough token estimate from text length.
func EstimateTokensFromText(text string) int {
	// Rough heuristic: ~4 characters per token for English text
	return (len(text) + 3) / 4
}
