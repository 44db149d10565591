package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}

func TestSetBudgetRemaining(t *testing.T) {
	SetBudgetRemaining(700, -1)

	if got := testutil.ToFloat64(BudgetTokensRemaining.WithLabelValues("daily")); got != 700 {
		t.Errorf("daily = %v, want 700", got)
	}
	if got := testutil.ToFloat64(BudgetTokensRemaining.WithLabelValues("monthly")); got != -1 {
		t.Errorf("monthly = %v, want -1", got)
	}
}
