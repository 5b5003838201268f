package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration signals settings that can never work (e.g. chunk overlap >= chunk size).
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidArgument signals a caller-supplied value outside the accepted range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmbeddingUnavailable signals that the embedding service could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrEmbeddingInvalidResponse signals a malformed embedding payload.
	ErrEmbeddingInvalidResponse = errors.New("embedding service returned an invalid response")
	// ErrModelNotFound signals a model id missing from the registry.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelNotAuthorized signals a subscription tier below the model's gate.
	ErrModelNotAuthorized = errors.New("model not authorized for subscription level")
	// ErrLLMProviderError signals a failure reported by, or while talking to, an LLM provider.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrPersistence signals a database failure.
	ErrPersistence = errors.New("persistence error")
)

// Stable kind identifiers exposed to API callers.
const (
	KindInvalidConfiguration     = "invalid_configuration"
	KindInvalidArgument          = "invalid_argument"
	KindEmbeddingUnavailable     = "embedding_unavailable"
	KindEmbeddingInvalidResponse = "embedding_invalid_response"
	KindModelNotFound            = "model_not_found"
	KindModelNotAuthorized       = "model_not_authorized"
	KindLLMProviderError         = "llm_provider_error"
	KindPersistenceError         = "persistence_error"
	KindInternal                 = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidConfiguration, KindInvalidConfiguration},
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrEmbeddingUnavailable, KindEmbeddingUnavailable},
	{ErrEmbeddingInvalidResponse, KindEmbeddingInvalidResponse},
	{ErrModelNotFound, KindModelNotFound},
	{ErrModelNotAuthorized, KindModelNotAuthorized},
	{ErrLLMProviderError, KindLLMProviderError},
	{ErrPersistence, KindPersistenceError},
}

// Kind maps an error chain onto its taxonomy kind. Unknown errors are "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ProviderError carries the provider's own message through the router.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", ErrLLMProviderError.Error(), e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrLLMProviderError.Error(), e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrLLMProviderError }

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, statusCode int, message string) error {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: message}
}
