package visualswe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "a settings dialog"}}]
}`

// chatServer answers chat completions with body and records the decoded requests.
type chatServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []map[string]any
}

func newChatServer(t *testing.T, status int, body string) *chatServer {
	t.Helper()
	s := &chatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal(raw, &decoded))
		s.mu.Lock()
		s.requests = append(s.requests, decoded)
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) last(t *testing.T) map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func newTestOpenAI(s *chatServer) *OpenAIInvoker {
	return NewOpenAIInvoker(EndpointConfig{BaseURL: s.URL + "/v1", APIKey: "sk-test", Model: "test-model"}, nil)
}

func TestOpenAIInvoker_ImageRequest(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, completionBody)
	inv := newTestOpenAI(srv)

	out, err := inv.Generate(context.Background(), &Request{
		System:      "describe",
		Parts:       []*Part{NewTextPart("Issue text"), NewImagePart([]byte("img"), "image/png")},
		Temperature: ptr(0.2),
		Seed:        ptr[int64](42),
	})
	require.NoError(t, err)
	assert.Equal(t, "a settings dialog", out)

	body := srv.last(t)
	assert.Equal(t, "test-model", body["model"])
	assert.Equal(t, 0.2, body["temperature"])
	assert.Equal(t, 42.0, body["seed"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])
	content := user["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": "Issue text"}, content[0])
	image := content[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/png;base64,aW1n", image["image_url"].(map[string]any)["url"])
}

func TestOpenAIInvoker_VideoRequest(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, completionBody)
	inv := newTestOpenAI(srv)

	out, err := inv.Generate(context.Background(), &Request{
		Model:  "vl-model",
		System: "describe",
		Parts:  []*Part{NewTextPart("Recording:"), NewVideoPart("/data/Videos/i/Video0.mp4", "video/mp4", 1.0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "a settings dialog", out)

	body := srv.last(t)
	assert.Equal(t, "vl-model", body["model"])
	assert.NotContains(t, body, "temperature")
	assert.NotContains(t, body, "seed")

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	content := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, map[string]any{
		"type":  "video",
		"video": "file:///data/Videos/i/Video0.mp4",
		"fps":   1.0,
	}, content[1])
}

func TestOpenAIInvoker_Errors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		srv := newChatServer(t, http.StatusServiceUnavailable, `{"error":{"message":"overloaded","type":"server_error"}}`)
		_, err := newTestOpenAI(srv).Generate(context.Background(), &Request{Parts: []*Part{NewTextPart("x")}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := newChatServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`)
		_, err := newTestOpenAI(srv).Generate(context.Background(), &Request{Parts: []*Part{NewTextPart("x")}})
		assert.ErrorIs(t, err, ErrNoChoices)
	})

	t.Run("no model", func(t *testing.T) {
		inv := NewOpenAIInvoker(EndpointConfig{BaseURL: "http://127.0.0.1:1/v1"}, nil)
		_, err := inv.Generate(context.Background(), &Request{Parts: []*Part{NewTextPart("x")}})
		assert.ErrorIs(t, err, ErrModelMissing)
	})
}

func TestRawChatRequest_Interleaving(t *testing.T) {
	req := rawChatRequest("m", &Request{Parts: []*Part{
		NewTextPart("a"),
		NewImagePart([]byte{1}, "image/png"),
		NewVideoPart("/v.mp4", "video/mp4", 2),
		NewTextPart("b"),
	}})

	require.Len(t, req.Messages, 1, "no system message without a prompt")
	var types []string
	for _, b := range req.Messages[0].Content {
		types = append(types, b.Type)
	}
	assert.Equal(t, []string{"text", "image_url", "video", "text"}, types)
}
