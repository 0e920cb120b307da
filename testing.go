package visualswe

import (
	"context"
	"log/slog"
	"sync"
)

// FakeInvoker is a scripted invoker for tests. Every request is recorded.
type FakeInvoker struct {
	mu       sync.Mutex
	respond  func(req *Request) (string, error)
	requests []*Request
}

// NewFakeInvoker answers each request with respond.
func NewFakeInvoker(respond func(req *Request) (string, error)) *FakeInvoker {
	return &FakeInvoker{respond: respond}
}

func (f *FakeInvoker) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

// Requests returns a copy of the recorded requests.
func (f *FakeInvoker) Requests() []*Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Request(nil), f.requests...)
}

// StagePrompts uses each stage's name as its system prompt, so a fake can
// tell stages apart by req.System.
func StagePrompts() SimplePromptProvider {
	p := make(SimplePromptProvider, len(Stages))
	for _, s := range Stages {
		p[string(s)] = string(s)
	}
	return p
}

// NewForTesting creates a Pipeline around inv with stage-name prompts and a
// placeholder model.
func NewForTesting(inv Invoker, optFns ...func(*Options)) *Pipeline {
	opts := append([]func(*Options){WithModel("test-model")}, optFns...)
	return NewWithLogger(inv, StagePrompts(), slog.Default(), opts...)
}
