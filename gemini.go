package visualswe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"
)

// GeminiInvoker generates through the Gemini API. Video files are uploaded
// through the Files API once per path and referenced by URI.
type GeminiInvoker struct {
	client *genai.Client
	model  string
	log    *slog.Logger

	mu       sync.Mutex
	uploaded map[string]*genai.File // by absolute path
	inflight singleflight.Group

	// put uploads one file and waits for it to become usable
	put          func(ctx context.Context, p *Part) (*genai.File, error)
	pollInterval time.Duration
}

// NewGeminiInvoker creates the genai client for an endpoint config.
func NewGeminiInvoker(ctx context.Context, cfg EndpointConfig, log *slog.Logger) (*GeminiInvoker, error) {
	if log == nil {
		log = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g := &GeminiInvoker{
		client:       client,
		model:        cfg.Model,
		log:          log,
		uploaded:     make(map[string]*genai.File),
		pollInterval: 2 * time.Second,
	}
	g.put = g.uploadAndWait
	return g, nil
}

// Generate implements Invoker.
func (g *GeminiInvoker) Generate(ctx context.Context, req *Request) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("client not initialized")
	}
	model := req.Model
	if model == "" {
		model = g.model
	}
	if model == "" {
		return "", ErrModelMissing
	}

	parts, err := geminiParts(req, func(p *Part) (*genai.File, error) {
		return g.upload(ctx, p)
	})
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	g.log.Debug("Generating content", "model", model, "part_count", len(parts))
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, geminiConfig(req))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

// geminiParts converts request parts, calling upload for each video.
func geminiParts(req *Request, upload func(*Part) (*genai.File, error)) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Type {
		case PartText:
			parts = append(parts, genai.NewPartFromText(p.Text))
		case PartImage:
			parts = append(parts, genai.NewPartFromBytes(p.Data, p.MimeType))
		case PartVideo:
			file, err := upload(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, genai.NewPartFromFile(genai.File{URI: file.URI, MIMEType: p.MimeType}))
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no valid content provided")
	}
	return parts, nil
}

// geminiConfig maps the request's system prompt and sampling settings.
func geminiConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.Seed != nil {
		s := int32(*req.Seed)
		cfg.Seed = &s
	}
	return cfg
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoChoices
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no parts in candidate content: %w", ErrNoChoices)
	}
	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}
	return text, nil
}

// upload returns the Files API entry of a video, uploading it on first use.
// Concurrent requests for the same path share one upload; different paths
// upload in parallel.
func (g *GeminiInvoker) upload(ctx context.Context, p *Part) (*genai.File, error) {
	g.mu.Lock()
	f, ok := g.uploaded[p.Path]
	g.mu.Unlock()
	if ok {
		g.log.Debug("Using cached uploaded file", "uri", f.URI)
		return f, nil
	}

	v, err, _ := g.inflight.Do(p.Path, func() (any, error) {
		file, err := g.put(ctx, p)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.uploaded[p.Path] = file
		g.mu.Unlock()
		return file, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*genai.File), nil
}

// uploadAndWait sends a video to the Files API and polls until it is usable.
func (g *GeminiInvoker) uploadAndWait(ctx context.Context, p *Part) (*genai.File, error) {
	g.log.Debug("Uploading file to Files API", "path", p.Path, "mime_type", p.MimeType)
	file, err := g.client.Files.UploadFromPath(ctx, p.Path, &genai.UploadFileConfig{
		MIMEType:    p.MimeType,
		DisplayName: filepath.Base(filepath.Dir(p.Path)) + "/" + filepath.Base(p.Path),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file %s: %w", p.Path, err)
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		file, err = g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("poll file %s: %w", p.Path, err)
		}
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("file %s failed processing", p.Path)
	}

	g.log.Debug("File upload completed", "uri", file.URI, "name", file.Name, "state", file.State)
	return file, nil
}
