package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedGateway wraps a Generator and a Moderator with the shared token budget,
// a per-call timeout and logging. Transport metrics are recorded in transport/openai.
type InstrumentedGateway struct {
	generator domain.Generator
	moderator domain.Moderator
	model     string
	timeout   time.Duration
	budget    BudgetChecker
	logger    *zap.Logger
}

// NewInstrumentedGateway wraps the model clients. A zero timeout leaves the caller's deadline untouched.
func NewInstrumentedGateway(
	generator domain.Generator, moderator domain.Moderator, model string,
	timeout time.Duration, budget BudgetChecker, logger *zap.Logger,
) *InstrumentedGateway {
	return &InstrumentedGateway{
		generator: generator,
		moderator: moderator,
		model:     model,
		timeout:   timeout,
		budget:    budget,
		logger:    logger,
	}
}

// Generate implements domain.Generator.
func (g *InstrumentedGateway) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			g.logger.Error("Budget exceeded",
				zap.String("operation", p.Operation),
				zap.String("model", g.model),
				zap.Error(err),
			)
			return domain.Completion{}, fmt.Errorf("budget check: %w", err)
		}
	}

	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.generator.Generate(callCtx, p)
	duration := time.Since(start)

	if err != nil {
		g.logger.Warn("Completion request failed",
			zap.String("operation", p.Operation),
			zap.String("model", g.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Completion{}, fmt.Errorf("%s: %w", p.Operation, err)
	}

	domain.UsageFromContext(ctx).AddLLM(out.TotalTokens)
	if g.budget != nil && out.TotalTokens > 0 {
		g.budget.Record(int64(out.TotalTokens))
		metrics.SetBudgetRemaining(g.budget.RemainingDaily(), g.budget.RemainingMonthly())
	}

	g.logger.Debug("Completion request completed",
		zap.String("operation", p.Operation),
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", out.PromptTokens),
		zap.Int("completion_tokens", out.CompletionTokens),
	)
	return out, nil
}

// Moderate implements domain.Moderator. Moderation does not count against the budget.
func (g *InstrumentedGateway) Moderate(ctx context.Context, text string) (domain.Moderation, error) {
	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.moderator.Moderate(callCtx, text)
	if err != nil {
		g.logger.Warn("Moderation request failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.Moderation{}, fmt.Errorf("moderation: %w", err)
	}

	g.logger.Debug("Moderation request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("flagged", out.Flagged),
		zap.Strings("categories", out.Categories),
	)
	return out, nil
}

func (g *InstrumentedGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}
