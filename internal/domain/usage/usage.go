package usage

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q: %w", s, domain.ErrInvalidRequest)
	}
}

// Report is the token budget status for one period. A zero limit means unlimited, in
// which case TokensRemaining is -1. Total has no boundaries and no limit.
type Report struct {
	Period          Period
	PeriodStart     int64
	PeriodEnd       int64
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	Exhausted       bool
}
