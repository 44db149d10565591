package domain

import "context"

type tokenUsageKey struct{}

// TokenUsage collects model tokens spent while serving one request.
// The handler places a pointer in the context, the instrumented model layers add to it,
// and the handler reads it back for response headers.
type TokenUsage struct {
	LLMTokens       int
	EmbeddingTokens int
	Calls           int
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *TokenUsage) {
	u := &TokenUsage{}
	return context.WithValue(ctx, tokenUsageKey{}, u), u
}

// UsageFromContext returns the collector, or nil if none was attached.
func UsageFromContext(ctx context.Context) *TokenUsage {
	u, _ := ctx.Value(tokenUsageKey{}).(*TokenUsage)
	return u
}

// AddLLM records chat completion tokens. Safe on a nil receiver.
func (u *TokenUsage) AddLLM(n int) {
	if u != nil {
		u.LLMTokens += n
		u.Calls++
	}
}

// AddEmbedding records embedding tokens. Safe on a nil receiver.
func (u *TokenUsage) AddEmbedding(n int) {
	if u != nil {
		u.EmbeddingTokens += n
		u.Calls++
	}
}

// Total returns all tokens spent.
func (u *TokenUsage) Total() int {
	if u == nil {
		return 0
	}
	return u.LLMTokens + u.EmbeddingTokens
}
