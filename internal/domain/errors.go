package domain

import "errors"

var (
	// ErrNotFound signals a missing catalog entry.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a malformed inbound request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrRetrieverUnavailable signals that the catalog backend failed to initialize.
	ErrRetrieverUnavailable = errors.New("retriever unavailable")
	// ErrTokenQuotaExceeded signals an exhausted token budget.
	ErrTokenQuotaExceeded = errors.New("token quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a chat completion or moderation provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrInvalidSeed signals a seed catalog record that failed validation.
	ErrInvalidSeed = errors.New("invalid seed record")
)
