package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/attune/internal/store"
)

func TestMockProvider_FIFOAndRecording(t *testing.T) {
	mock := NewMockProvider(
		TextResponse("What do you notice about the gradient here?"),
		JSONResponse(map[string]any{"tool": "question"}),
	)
	ctx := context.Background()

	first, err := mock.Generate(ctx, Request{System: "sys", Messages: []Message{{Role: RoleUser, Content: "open"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Text() != "What do you notice about the gradient here?" {
		t.Errorf("Text() = %q", first.Text())
	}

	second, err := mock.Generate(ctx, Request{Schema: toolSchema()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct{ Tool string }
	if err := second.Decode(&out); err != nil || out.Tool != "question" {
		t.Errorf("Decode = %+v, %v", out, err)
	}

	_, err = mock.Generate(ctx, Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Errorf("empty queue err = %T, want ErrProviderUnavailable", err)
	}
	if reqs := mock.Requests(); len(reqs) != 3 || reqs[0].System != "sys" {
		t.Errorf("Requests = %+v", reqs)
	}
}

func TestMockProvider_ValidatesAgainstSchema(t *testing.T) {
	mock := NewMockProvider(JSONResponse(map[string]any{"tool": "lecture"}))
	_, err := mock.Generate(context.Background(), Request{Schema: toolSchema()})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Errorf("err = %T, want ErrInvalidResponse", err)
	}
}

func TestResponseText_NonStringContent(t *testing.T) {
	r := &Response{Content: json.RawMessage(`{"a":1}`)}
	if r.Text() != `{"a":1}` {
		t.Errorf("Text() = %q, want raw content", r.Text())
	}
}

func TestPurposeContext(t *testing.T) {
	if got := PurposeFrom(context.Background()); got != "unknown" {
		t.Errorf("PurposeFrom(empty) = %q, want unknown", got)
	}
	ctx := WithPurpose(context.Background(), "dialogue-analysis")
	if got := PurposeFrom(ctx); got != "dialogue-analysis" {
		t.Errorf("PurposeFrom = %q", got)
	}
}

type fakeJournal struct {
	events []store.LLMRequestEventData
	err    error
}

func (f *fakeJournal) AppendLLMRequest(_ context.Context, d store.LLMRequestEventData) error {
	f.events = append(f.events, d)
	return f.err
}

func TestLoggingProvider(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	journal := &fakeJournal{err: errors.New("disk full")}
	mock := NewMockProvider(TextResponse("ok"))
	p := WithLogging(mock, journal, zap.New(core))

	ctx := WithPurpose(context.Background(), "conceptual-prompt")
	if _, err := p.Generate(ctx, Request{System: "be brief", Messages: []Message{{Role: RoleUser, Content: "hi"}}}); err != nil {
		t.Fatalf("journal failure leaked into the call: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error from empty mock")
	}

	if len(journal.events) != 2 {
		t.Fatalf("journaled %d events, want 2", len(journal.events))
	}
	ok, failed := journal.events[0], journal.events[1]
	if !ok.Success || ok.Purpose != "conceptual-prompt" || ok.ResponseBody != `"ok"` {
		t.Errorf("success event = %+v", ok)
	}
	if ok.RequestBody != "[system]\nbe brief\n\n[user]\nhi\n\n" {
		t.Errorf("RequestBody = %q", ok.RequestBody)
	}
	if failed.Success || failed.ErrorMessage == "" {
		t.Errorf("failure event = %+v", failed)
	}
	if n := logs.FilterMessage("llm call failed").Len(); n != 1 {
		t.Errorf("logged %d failures, want 1", n)
	}
	if n := logs.FilterMessage("journal llm request").Len(); n != 2 {
		t.Errorf("logged %d journal warnings, want 2", n)
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("ATTUNE_LLM_PROVIDER", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "ak")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default mock config invalid: %v", err)
	}
	cfg.ApplyEnv()
	if cfg.Provider != "anthropic" || cfg.Anthropic.APIKey != "ak" {
		t.Errorf("discovered %q with key %q, want anthropic", cfg.Provider, cfg.Anthropic.APIKey)
	}

	t.Setenv("ATTUNE_LLM_PROVIDER", "openai")
	cfg = DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want explicit openai", cfg.Provider)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for openai without key")
	}

	cfg.Provider = "bard"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), DefaultConfig(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Errorf("ModelID = %q, want mock", p.ModelID())
	}
	if _, ok := p.(*TimeoutProvider); !ok {
		t.Errorf("outermost provider = %T, want *TimeoutProvider", p)
	}
}
