package chi

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain/answer"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	domusage "github.com/kailas-cloud/librarian/internal/domain/usage"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
)

// ChatService answers one query through the guardrail pipeline.
type ChatService interface {
	Ask(ctx context.Context, query string, k int) (answer.Answer, error)
	ClampK(k int) int
}

// Searcher runs raw retrieval for debugging.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]book.Hit, error)
}

// UsageReporter builds token budget reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker runs dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
