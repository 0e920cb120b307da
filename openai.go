package visualswe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIInvoker talks to any OpenAI-compatible chat-completion endpoint.
// Retries are left to the pipeline's policy.
type OpenAIInvoker struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

// NewOpenAIInvoker builds an invoker from an endpoint config. The config's
// model is used when a request does not name one.
func NewOpenAIInvoker(cfg EndpointConfig, log *slog.Logger) *OpenAIInvoker {
	if log == nil {
		log = slog.Default()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIInvoker{client: openai.NewClient(opts...), model: cfg.Model, log: log}
}

// Generate implements Invoker.
func (o *OpenAIInvoker) Generate(ctx context.Context, req *Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	if model == "" {
		return "", ErrModelMissing
	}
	o.log.Debug("Starting generation", "model", model, "parts", len(req.Parts), "video", hasVideo(req.Parts))

	var (
		resp *openai.ChatCompletion
		err  error
	)
	if hasVideo(req.Parts) {
		resp, err = o.postRaw(ctx, model, req)
	} else {
		resp, err = o.client.Chat.Completions.New(ctx, chatParams(model, req))
	}
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion: status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// chatParams builds the typed request for text and image content.
func chatParams(model string, req *Request) openai.ChatCompletionNewParams {
	content := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Type {
		case PartText:
			content = append(content, openai.TextContentPart(p.Text))
		case PartImage:
			content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.DataURI(),
			}))
		}
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(content))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	return params
}

// Wire shapes for requests carrying video blocks, which the typed client has
// no content type for.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Seed        *int64        `json:"seed,omitempty"`
}

type chatMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	Video    string    `json:"video,omitempty"`
	FPS      float64   `json:"fps,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func rawChatRequest(model string, req *Request) chatRequest {
	blocks := make([]contentBlock, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Type {
		case PartText:
			blocks = append(blocks, contentBlock{Type: "text", Text: p.Text})
		case PartImage:
			blocks = append(blocks, contentBlock{Type: "image_url", ImageURL: &imageURL{URL: p.DataURI()}})
		case PartVideo:
			blocks = append(blocks, contentBlock{Type: "video", Video: p.FileURI(), FPS: p.FPS})
		}
	}
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{
			Role:    "system",
			Content: []contentBlock{{Type: "text", Text: req.System}},
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: blocks})
	return chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		Seed:        req.Seed,
	}
}

func (o *OpenAIInvoker) postRaw(ctx context.Context, model string, req *Request) (*openai.ChatCompletion, error) {
	var resp openai.ChatCompletion
	if err := o.client.Post(ctx, "chat/completions", rawChatRequest(model, req), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
