package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrapped invalid argument", fmt.Errorf("topK must be positive: %w", ErrInvalidArgument), KindInvalidArgument},
		{"provider error", NewProviderError("openai", 500, "boom"), KindLLMProviderError},
		{"persistence", fmt.Errorf("save chunks: %w", ErrPersistence), KindPersistenceError},
		{"unknown", errors.New("something else"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderError_KeepsProviderMessage(t *testing.T) {
	err := fmt.Errorf("generate: %w", NewProviderError("anthropic", 429, "rate limited"))

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatal("expected ProviderError in chain")
	}
	if pe.Message != "rate limited" || pe.Provider != "anthropic" {
		t.Fatalf("unexpected provider error: %+v", pe)
	}
	if !errors.Is(err, ErrLLMProviderError) {
		t.Fatal("expected ErrLLMProviderError in chain")
	}
}
