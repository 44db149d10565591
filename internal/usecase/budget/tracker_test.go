package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	mu     sync.Mutex
	data   map[string]int64
	calls  int
	getErr error
	setErr error
	gate   chan struct{} // when set, IncrBy waits for it to close
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]int64)}
}

func (m *mockStore) IncrBy(_ context.Context, key string, val int64) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.calls++
	m.data[key] += val
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	return m.data[key], nil
}

func newTracker(daily, monthly int64, action Action) *Tracker {
	return NewTracker("tokens", "librarian:", daily, monthly, action, zap.NewNop())
}

// --- Limits ---

func TestTracker_RejectWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, ActionReject)
	bt.Record(100)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrTokenQuotaExceeded) {
		t.Fatalf("expected ErrTokenQuotaExceeded, got %v", err)
	}
}

func TestTracker_WarnWhenExceeded(t *testing.T) {
	bt := newTracker(100, 0, ActionWarn)
	bt.Record(200)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for warn action, got %v", err)
	}
}

func TestTracker_MonthlyReject(t *testing.T) {
	bt := newTracker(0, 500, ActionReject)
	bt.Record(500)

	if err := bt.Check(context.Background()); !errors.Is(err, domain.ErrTokenQuotaExceeded) {
		t.Fatalf("expected ErrTokenQuotaExceeded for monthly limit, got %v", err)
	}
}

func TestTracker_UnlimitedWhenZero(t *testing.T) {
	bt := newTracker(0, 0, ActionReject)
	bt.Record(999999999)

	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected nil error for unlimited budget, got %v", err)
	}
	if bt.RemainingDaily() != -1 || bt.RemainingMonthly() != -1 {
		t.Errorf("expected -1/-1, got %d/%d", bt.RemainingDaily(), bt.RemainingMonthly())
	}
}

func TestTracker_Remaining(t *testing.T) {
	bt := newTracker(1000, 10000, ActionWarn)
	bt.Record(300)

	if got := bt.RemainingDaily(); got != 700 {
		t.Errorf("expected daily remaining 700, got %d", got)
	}
	if got := bt.RemainingMonthly(); got != 9700 {
		t.Errorf("expected monthly remaining 9700, got %d", got)
	}

	bt.Record(5000)
	if got := bt.RemainingDaily(); got != 0 {
		t.Errorf("overdrawn daily budget should report 0, got %d", got)
	}
}

func TestTracker_RecordIgnoresNonPositive(t *testing.T) {
	bt := newTracker(10, 10, ActionReject)
	bt.Record(0)
	bt.Record(-5)

	if bt.DailyUsed() != 0 || bt.TotalUsed() != 0 {
		t.Errorf("expected no usage, got daily=%d total=%d", bt.DailyUsed(), bt.TotalUsed())
	}
}

func TestTracker_DayRollover(t *testing.T) {
	bt := newTracker(100, 1000, ActionReject)
	day := time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)
	bt.now = func() time.Time { return day }
	bt.lastDayReset = truncateToDay(day)
	bt.lastMonthReset = truncateToMonth(day)

	bt.Record(100)
	if err := bt.Check(context.Background()); err == nil {
		t.Fatal("expected rejection before midnight")
	}

	day = day.Add(2 * time.Minute)
	if err := bt.Check(context.Background()); err != nil {
		t.Fatalf("expected daily reset after midnight, got %v", err)
	}
	if bt.MonthlyUsed() != 100 {
		t.Errorf("monthly usage must survive a day rollover, got %d", bt.MonthlyUsed())
	}
	if bt.TotalUsed() != 100 {
		t.Errorf("lifetime usage must survive rollovers, got %d", bt.TotalUsed())
	}
}

// --- Persistence ---

func TestTracker_WithStore_LoadsValues(t *testing.T) {
	store := newMockStore()
	bt := newTracker(1000, 10000, ActionReject)
	now := bt.Now()
	store.data[bt.dailyKey(now)] = 300
	store.data[bt.monthlyKey(now)] = 5000
	store.data[bt.totalKey()] = 90000

	bt.WithStore(context.Background(), store)

	if bt.DailyUsed() != 300 {
		t.Errorf("expected daily_used=300, got %d", bt.DailyUsed())
	}
	if bt.MonthlyUsed() != 5000 {
		t.Errorf("expected monthly_used=5000, got %d", bt.MonthlyUsed())
	}
	if bt.TotalUsed() != 90000 {
		t.Errorf("expected total_used=90000, got %d", bt.TotalUsed())
	}
}

func TestTracker_Record_PersistsAllPeriods(t *testing.T) {
	store := newMockStore()
	bt := newTracker(1000, 10000, ActionWarn).WithStore(context.Background(), store)

	bt.Record(100)
	bt.Record(200)
	bt.Close()

	now := bt.Now()
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, key := range []string{bt.dailyKey(now), bt.monthlyKey(now), bt.totalKey()} {
		if store.data[key] != 300 {
			t.Errorf("store[%s] = %d, want 300", key, store.data[key])
		}
	}
}

func TestTracker_WithStore_LoadError(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection refused")

	bt := newTracker(1000, 10000, ActionReject).WithStore(context.Background(), store)

	if bt.DailyUsed() != 0 || bt.MonthlyUsed() != 0 {
		t.Errorf("expected zero usage on load error, got %d/%d", bt.DailyUsed(), bt.MonthlyUsed())
	}
}

func TestTracker_Record_StoreWriteError(t *testing.T) {
	store := newMockStore()
	bt := newTracker(1000, 10000, ActionWarn).WithStore(context.Background(), store)

	store.mu.Lock()
	store.setErr = errors.New("write timeout")
	store.mu.Unlock()

	bt.Record(50)
	bt.Close()

	if bt.DailyUsed() != 50 {
		t.Errorf("expected daily_used=50 even with store error, got %d", bt.DailyUsed())
	}
}

func TestTracker_Record_DoesNotWaitForStore(t *testing.T) {
	store := newMockStore()
	store.gate = make(chan struct{})
	bt := newTracker(0, 0, ActionWarn).WithStore(context.Background(), store)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bt.Record(10)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a stalled store")
	}
	if bt.TotalUsed() != 100 {
		t.Errorf("total_used = %d, want 100", bt.TotalUsed())
	}

	close(store.gate)
	bt.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if got := store.data[bt.totalKey()]; got != 100 {
		t.Errorf("persisted total = %d, want 100", got)
	}
	if store.calls > 9 {
		t.Errorf("expected coalesced writes, got %d calls", store.calls)
	}
}

func TestTracker_CloseIsIdempotent(t *testing.T) {
	newTracker(0, 0, ActionWarn).Close()

	bt := newTracker(0, 0, ActionWarn).WithStore(context.Background(), newMockStore())
	bt.Close()
	bt.Close()
	bt.Record(5)
	if bt.TotalUsed() != 5 {
		t.Errorf("counting must continue after Close, got %d", bt.TotalUsed())
	}
}

func TestTracker_KeyFormat(t *testing.T) {
	bt := NewTracker("tokens", "", 0, 0, ActionWarn, zap.NewNop())
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	if got := bt.dailyKey(at); got != "librarian:budget:tokens:daily:2026-10-15" {
		t.Errorf("daily key = %q", got)
	}
	if got := bt.monthlyKey(at); got != "librarian:budget:tokens:monthly:2026-10" {
		t.Errorf("monthly key = %q", got)
	}
	if got := bt.totalKey(); got != "librarian:budget:tokens:total" {
		t.Errorf("total key = %q", got)
	}
}
