package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

var errClientGone = errors.New("client disconnected")

func allEnabled() Config {
	return Config{
		DefaultModel: "gpt-4o-mini",
		Providers: map[string]ProviderConfig{
			ProviderOpenAI:    {Enabled: true},
			ProviderAnthropic: {Enabled: true},
			ProviderDeepSeek:  {Enabled: true},
			ProviderLocal:     {Enabled: true},
		},
	}
}

func newTestRouter(t *testing.T, cfg Config, providers ...Provider) *Router {
	t.Helper()
	reg, err := NewRegistry(DefaultModels())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewRouter(cfg, reg, nil, providers...)
}

func TestRouter_UnknownModelNeverCallsProvider(t *testing.T) {
	openaiFake := &fakeProvider{name: ProviderOpenAI, chunks: []string{"hi"}}
	r := newTestRouter(t, allEnabled(), openaiFake)

	_, err := r.GenerateResponse(context.Background(), GenerateInput{
		Query:             "hello",
		ModelID:           "model-x",
		SubscriptionLevel: model.SubscriptionPremium,
	})
	if !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
	if openaiFake.calls != 0 {
		t.Fatalf("provider called %d times", openaiFake.calls)
	}
}

func TestRouter_NotAuthorizedBeforeNetwork(t *testing.T) {
	openaiFake := &fakeProvider{name: ProviderOpenAI, chunks: []string{"hi"}}
	r := newTestRouter(t, allEnabled(), openaiFake)

	for _, level := range []string{model.SubscriptionFree, model.SubscriptionBasic, "gold", ""} {
		_, err := r.GenerateResponse(context.Background(), GenerateInput{Query: "q", ModelID: "gpt-4o", SubscriptionLevel: level})
		if !errors.Is(err, domain.ErrModelNotAuthorized) {
			t.Fatalf("level %q: err = %v, want ErrModelNotAuthorized", level, err)
		}
	}
	if openaiFake.calls != 0 {
		t.Fatalf("provider called %d times", openaiFake.calls)
	}
}

func TestRouter_GenerateComposesPromptAndResponse(t *testing.T) {
	ds := &fakeProvider{name: ProviderDeepSeek, chunks: []string{"30 days."}}
	r := newTestRouter(t, allEnabled(), ds)

	resp, err := r.GenerateResponse(context.Background(), GenerateInput{
		Query:             "How long is the return window?",
		ContextChunks:     []string{"Returns accepted within 30 days.", "Refunds to original method."},
		CitationTitles:    []string{"Returns policy", "Returns policy"},
		ModelID:           "deepseek-chat",
		SubscriptionLevel: model.SubscriptionBasic,
	})
	if err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	if resp.Content != "30 days." || resp.Provider != ProviderDeepSeek || resp.ModelID != "deepseek-chat" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", resp.Confidence)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != "Returns policy" {
		t.Fatalf("citations = %v", resp.Citations)
	}

	req := ds.requests[0]
	if req.Temperature != DefaultTemperature || req.MaxTokens != DefaultMaxTokens {
		t.Fatalf("defaults not applied: %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	user := req.Messages[1].Content
	for _, want := range []string{"[Document 1: Returns policy]", "[Document 2: Returns policy]", "How long is the return window?"} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestRouter_ProviderErrorKeepsMessageWithoutFallback(t *testing.T) {
	openaiFake := &fakeProvider{name: ProviderOpenAI, err: domain.NewProviderError(ProviderOpenAI, 429, "quota exceeded")}
	local := &fakeProvider{name: ProviderLocal, chunks: []string{"fallback"}}
	r := newTestRouter(t, allEnabled(), openaiFake, local)

	_, err := r.GenerateResponse(context.Background(), GenerateInput{Query: "q", ModelID: "gpt-4o-mini", SubscriptionLevel: model.SubscriptionBasic})
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Message != "quota exceeded" {
		t.Fatalf("err = %v, want provider message", err)
	}
	if local.calls != 0 {
		t.Fatal("router fell back to another provider")
	}
}

func TestRouter_PlainAdapterErrorBecomesProviderError(t *testing.T) {
	local := &fakeProvider{name: ProviderLocal, err: errors.New("connection refused")}
	r := newTestRouter(t, allEnabled(), local)

	_, err := r.GenerateResponse(context.Background(), GenerateInput{Query: "q", ModelID: "mistral:latest", SubscriptionLevel: model.SubscriptionFree})
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("err = %v", err)
	}
}

func TestRouter_StreamDeliversChunksThenOneCompletion(t *testing.T) {
	anth := &fakeProvider{name: ProviderAnthropic, chunks: []string{"The ", "return ", "window is 30 days."}}
	r := newTestRouter(t, allEnabled(), anth)
	sink := &recordingSink{}

	err := r.StreamResponse(context.Background(), GenerateInput{
		Query:             "How long is the return window?",
		ContextChunks:     []string{"Returns accepted within 30 days."},
		CitationTitles:    []string{"Returns policy"},
		ModelID:           "claude-3-5-sonnet-latest",
		SubscriptionLevel: model.SubscriptionPremium,
	}, sink)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}
	want := []string{"The ", "return ", "window is 30 days."}
	if len(sink.chunks) != len(want) {
		t.Fatalf("chunks = %q", sink.chunks)
	}
	for i := range want {
		if sink.chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, sink.chunks[i], want[i])
		}
	}
	if len(sink.completes) != 1 || len(sink.errs) != 0 {
		t.Fatalf("terminal calls: %d completes, %d errors", len(sink.completes), len(sink.errs))
	}
	if sink.completes[0].Content != "The return window is 30 days." {
		t.Fatalf("content = %q", sink.completes[0].Content)
	}
}

func TestRouter_StreamErrorsEndWithSingleOnError(t *testing.T) {
	r := newTestRouter(t, allEnabled(), &fakeProvider{name: ProviderLocal, chunks: []string{"a", "b", "c"}})

	unknown := &recordingSink{}
	if err := r.StreamResponse(context.Background(), GenerateInput{ModelID: "model-x", SubscriptionLevel: model.SubscriptionFree}, unknown); !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("err = %v", err)
	}
	if len(unknown.errs) != 1 || len(unknown.completes) != 0 || len(unknown.chunks) != 0 {
		t.Fatalf("unexpected sink state %+v", unknown)
	}

	gone := &recordingSink{failAfter: 1}
	err := r.StreamResponse(context.Background(), GenerateInput{ModelID: "llama3.2:latest", SubscriptionLevel: model.SubscriptionFree}, gone)
	if err == nil {
		t.Fatal("expected error when consumer goes away")
	}
	if len(gone.chunks) != 1 || len(gone.errs) != 1 || len(gone.completes) != 0 {
		t.Fatalf("unexpected sink state %+v", gone)
	}
}

func TestRouter_Availability(t *testing.T) {
	cfg := allEnabled()
	cfg.Providers[ProviderAnthropic] = ProviderConfig{Enabled: false}
	r := newTestRouter(t, cfg,
		&fakeProvider{name: ProviderOpenAI},
		&fakeProvider{name: ProviderAnthropic},
		&fakeProvider{name: ProviderDeepSeek},
		&fakeProvider{name: ProviderLocal},
	)

	cases := []struct {
		model, level string
		want         bool
	}{
		{"gpt-4o", model.SubscriptionPremium, true},
		{"gpt-4o", model.SubscriptionBasic, false},
		{"gpt-4o-mini", model.SubscriptionBasic, true},
		{"llama3.2:latest", model.SubscriptionFree, true},
		{"claude-3-5-haiku-latest", model.SubscriptionPremium, false},
		{"model-x", model.SubscriptionPremium, false},
		{"llama3.2:latest", "platinum", false},
	}
	for _, c := range cases {
		if got := r.IsModelAvailable(c.model, c.level); got != c.want {
			t.Fatalf("IsModelAvailable(%q, %q) = %v, want %v", c.model, c.level, got, c.want)
		}
	}

	if got := len(r.GetAvailableModels()); got != len(DefaultModels()) {
		t.Fatalf("GetAvailableModels returned %d", got)
	}
	for _, m := range r.ModelsForLevel(model.SubscriptionFree) {
		if m.Tier != model.SubscriptionFree {
			t.Fatalf("free level offered %s (%s)", m.ID, m.Tier)
		}
	}

	if id, ok := r.DefaultModelFor(model.SubscriptionFree); !ok || id != "llama3.2:latest" {
		t.Fatalf("DefaultModelFor(free) = %q, %v", id, ok)
	}
	if id, ok := r.DefaultModelFor(model.SubscriptionBasic); !ok || id != "gpt-4o-mini" {
		t.Fatalf("DefaultModelFor(basic) = %q, %v", id, ok)
	}
}

func TestRouter_ListProviderModels(t *testing.T) {
	r := newTestRouter(t, allEnabled(), &fakeProvider{name: ProviderLocal})
	models, err := r.ListProviderModels(context.Background(), ProviderLocal)
	if err != nil || len(models) != 1 {
		t.Fatalf("ListProviderModels = %v, %v", models, err)
	}
	if _, err := r.ListProviderModels(context.Background(), ProviderOpenAI); !errors.Is(err, domain.ErrModelNotFound) {
		t.Fatalf("unconfigured provider err = %v", err)
	}
}

func TestTierAllows(t *testing.T) {
	if !TierAllows(model.SubscriptionPremium, model.SubscriptionFree) {
		t.Fatal("premium must include free")
	}
	if TierAllows(model.SubscriptionFree, model.SubscriptionBasic) {
		t.Fatal("free must not include basic")
	}
	if TierAllows("", model.SubscriptionFree) {
		t.Fatal("unknown level must have no access")
	}
}

func TestRouter_SetSystemPromptAppliesToNextRequest(t *testing.T) {
	openaiFake := &fakeProvider{name: ProviderOpenAI, chunks: []string{"ok"}}
	cfg := allEnabled()
	cfg.SystemPrompt = "answer from the handbook"
	r := newTestRouter(t, cfg, openaiFake)

	in := GenerateInput{Query: "q", ModelID: "gpt-4o-mini", SubscriptionLevel: model.SubscriptionBasic}
	if _, err := r.GenerateResponse(context.Background(), in); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	r.SetSystemPrompt("answer in one sentence")
	if _, err := r.GenerateResponse(context.Background(), in); err != nil {
		t.Fatalf("GenerateResponse: %v", err)
	}

	if got := openaiFake.requests[0].Messages[0].Content; got != "answer from the handbook" {
		t.Fatalf("first system prompt = %q", got)
	}
	if got := openaiFake.requests[1].Messages[0].Content; got != "answer in one sentence" {
		t.Fatalf("second system prompt = %q", got)
	}
	if r.SystemPrompt() != "answer in one sentence" {
		t.Fatalf("SystemPrompt() = %q", r.SystemPrompt())
	}
}
