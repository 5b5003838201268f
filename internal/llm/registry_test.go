package llm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"widgetrag/internal/domain"
)

func TestLoadRegistry_Default(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	m, ok := reg.Lookup("deepseek-reasoner")
	if !ok || m.Provider != ProviderDeepSeek || m.Tier != "premium" {
		t.Fatalf("unexpected descriptor %+v", m)
	}
	local := 0
	for _, d := range reg.All() {
		if d.Provider == ProviderLocal {
			local++
		}
	}
	if local != 3 {
		t.Fatalf("local models = %d, want 3", local)
	}
}

func TestLoadRegistry_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	body := `models:
  - id: qwen2.5:7b
    provider: local
    tier: free
    context_window: 32000
    capabilities: [chat, streaming]
  - id: gpt-4.1
    display_name: GPT-4.1
    provider: openai
    tier: premium
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	all := reg.All()
	if len(all) != 2 || all[0].ID != "qwen2.5:7b" || all[0].DisplayName != "qwen2.5:7b" {
		t.Fatalf("unexpected catalog %+v", all)
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	cases := [][]ModelDescriptor{
		{{ID: "", Provider: ProviderOpenAI, Tier: "free"}},
		{{ID: "a", Provider: "watson", Tier: "free"}},
		{{ID: "a", Provider: ProviderOpenAI, Tier: "gold"}},
		{{ID: "a", Provider: ProviderOpenAI, Tier: "free"}, {ID: "a", Provider: ProviderLocal, Tier: "free"}},
	}
	for i, c := range cases {
		if _, err := NewRegistry(c); !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("", "What is the refund method?", nil, nil)
	if msgs[0].Content != DefaultSystemPrompt {
		t.Fatal("expected default system prompt")
	}
	if !strings.Contains(msgs[1].Content, emptyContext) {
		t.Fatalf("empty context not reported:\n%s", msgs[1].Content)
	}

	long := strings.Repeat("x", maxBlockRunes+50)
	many := []string{long, long, long, long, long, long}
	msgs = BuildMessages("custom", "q", many, []string{"a.pdf"})
	if msgs[0].Content != "custom" {
		t.Fatal("custom system prompt ignored")
	}
	user := msgs[1].Content
	if !strings.Contains(user, "[Document 1: a.pdf]") || !strings.Contains(user, "[Document 2: Untitled 2]") {
		t.Fatalf("unexpected titles:\n%s", user[:200])
	}
	if strings.Contains(user, "[Document 6:") {
		t.Fatal("context budget not enforced")
	}
}

func TestCitations(t *testing.T) {
	got := Citations([]string{"b", "a", "b", "", "c", "a"})
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("Citations = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Citations = %v, want %v", got, want)
		}
	}
}
