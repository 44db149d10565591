package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/librarian/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := time.Now().UTC()
	if s.br != nil {
		now = s.br.Now().UTC()
	}
	r := domusage.Report{Period: period, TokensRemaining: -1}

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		r.PeriodStart = dayStart.UnixMilli()
		r.PeriodEnd = dayStart.Add(24 * time.Hour).UnixMilli()
		if s.br != nil {
			r.TokensLimit = s.br.DailyLimit()
			r.TokensUsed = s.br.DailyUsed()
			r.TokensRemaining = s.br.RemainingDaily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		r.PeriodStart = monthStart.UnixMilli()
		r.PeriodEnd = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			r.TokensLimit = s.br.MonthlyLimit()
			r.TokensUsed = s.br.MonthlyUsed()
			r.TokensRemaining = s.br.RemainingMonthly()
		}
	default:
		// total: lifetime counter, no boundaries and no limit
		if s.br != nil {
			r.TokensUsed = s.br.TotalUsed()
		}
	}

	r.Exhausted = r.TokensLimit > 0 && r.TokensRemaining == 0
	return r
}
