// Package visualswe enriches multimodal issue reports for software
// engineering benchmarks. An issue's problem statement arrives as a list of
// segments, some literal text and some URLs standing in for images or
// videos. A vision-language model describes and analyzes each media item,
// and the results are stitched back into one textual statement that
// text-only agents can consume.
//
// # Problem Statement
//
// Issue trackers mix prose with screenshots and screen recordings. Agents
// that only read text lose the evidence those media carry. The package
// replaces every media segment with a details block written by a model:
//
//   - Raw description: what the media shows, described on its own
//   - Contextual description: what it shows in the context of the issue
//   - Analysis: why it matters for understanding and resolving the issue
//
// and appends a structured summary of the whole issue.
//
// # Pipeline
//
// A run has four model stages followed by an offline assembly step:
//
//	step1.json           raw description, one call per media item
//	step2_des.json       contextual descriptions, one call per issue
//	step2_analysis.json  analyses, one call per issue
//	step3.json           structured summary, one call per issue
//	data_with_image.json assembled corpus (data_with_video.json for videos)
//
// Stages are run through a Pipeline:
//
//	inv, err := visualswe.NewInvoker(ctx, cfg.Endpoint, logger)
//	prompts, err := visualswe.DefaultPrompts()
//	p := visualswe.NewWithLogger(inv, prompts, logger, cfg.PipelineOptions()...)
//
//	issues, err := visualswe.ReadIssues("multi_data_onlyimage.json")
//	results, err := p.RunAll(ctx, issues, "out", true)
//
// Each stage returns its records in input order plus a Report. An instance
// whose media cannot be read, whose endpoint call keeps failing, or whose
// output cannot be parsed is skipped and listed in the report; the run goes
// on with the next instance. Cancelling ctx stops the run and the records
// finished so far are still written.
//
// # Media Layout
//
// Media URLs are never fetched. The scanner maps the index-th media segment
// of an instance to a local file:
//
//	images/<instance_id>/图片<index>.png
//	Videos/<instance_id>/Video<index>.mp4
//
// Both layouts are configurable through MediaLayout.
//
// # Backends
//
// OpenAIInvoker speaks to any OpenAI-compatible chat-completion endpoint.
// Images travel inline as data URIs; videos are sent as "video" blocks that
// reference the local file, which vLLM-style servers resolve themselves.
// GeminiInvoker uses the Gemini API and uploads videos through the Files API.
//
// # Assembly
//
// Assembly is pure: it reads the four stage files, joins them by instance id
// and media position, and rewrites problem_statement:
//
//	j, err := visualswe.LoadJoiner("out")
//	a := visualswe.NewAssembler(visualswe.MediaImage, logger)
//	enriched, report := a.AssembleCorpus(issues, j)
//
// An instance missing from any stage file, or whose lists do not hold one
// entry per media item, is left out of the output and reported.
//
// # Dry Runs
//
// Explain estimates calls and tokens per stage without touching the
// endpoint, and counts media files missing from disk:
//
//	plan, err := p.Explain(issues, visualswe.FormatText, visualswe.DefaultModelPricing())
package visualswe
