package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request.
	ActionReject Action = "reject"
)

// Store is the persistence interface for budget counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// flushTimeout bounds one background write of pending counters.
const flushTimeout = 2 * time.Second

// Tracker is an in-memory token budget shared by chat completions and embeddings,
// with optional write-behind persistence.
// Check never leaves the process. Record updates memory and queues the increments;
// a background flusher coalesces them into INCRBY calls, so no request waits on the store.
type Tracker struct {
	mu             sync.Mutex
	dailyUsed      int64
	monthlyUsed    int64
	totalUsed      int64
	dailyLimit     int64
	monthlyLimit   int64
	action         Action
	scope          string
	keyPrefix      string
	lastDayReset   time.Time
	lastMonthReset time.Time
	now            func() time.Time
	store          Store
	logger         *zap.Logger

	pending   map[string]int64
	closed    bool
	wake      chan struct{}
	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewTracker creates a tracker. A zero limit means unlimited.
func NewTracker(
	scope, keyPrefix string, dailyLimit, monthlyLimit int64,
	action Action, logger *zap.Logger,
) *Tracker {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		scope:        scope,
		keyPrefix:    keyPrefix,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
	now := t.now()
	t.lastDayReset = truncateToDay(now)
	t.lastMonthReset = truncateToMonth(now)
	return t
}

// WithStore attaches a persistence store, loads current counters and starts the
// flusher. Close persists whatever is still pending.
func (b *Tracker) WithStore(ctx context.Context, store Store) *Tracker {
	b.store = store
	b.loadFromStore(ctx)

	b.pending = make(map[string]int64)
	b.wake = make(chan struct{}, 1)
	b.stop = make(chan struct{})
	b.stopped = make(chan struct{})
	go b.flushLoop()
	return b
}

// Close stops the flusher after a final flush. It is a no-op without a store.
func (b *Tracker) Close() {
	if b.stop == nil {
		return
	}
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.stop)
	})
	<-b.stopped
}

func (b *Tracker) flushLoop() {
	defer close(b.stopped)
	for {
		select {
		case <-b.wake:
			b.flush()
		case <-b.stop:
			b.flush()
			return
		}
	}
}

// flush writes the pending increments. Failed writes are logged and dropped;
// the in-memory counters stay authoritative for this process.
func (b *Tracker) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = make(map[string]int64, len(batch))
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for key, val := range batch {
		if err := b.store.IncrBy(ctx, key, val); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Int64("tokens", val), zap.Error(err))
		}
	}
}

func (b *Tracker) loadFromStore(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if val, err := b.store.Get(ctx, b.dailyKey(now)); err == nil {
		b.dailyUsed = val
	} else {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, b.monthlyKey(now)); err == nil {
		b.monthlyUsed = val
	} else {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}
	if val, err := b.store.Get(ctx, b.totalKey()); err == nil {
		b.totalUsed = val
	} else {
		b.logger.Warn("Failed to load lifetime usage from store", zap.Error(err))
	}

	b.logger.Info("Budget loaded from store",
		zap.String("scope", b.scope),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("total_used", b.totalUsed),
	)
}

func (b *Tracker) dailyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:daily:%s", b.keyPrefix, b.scope, t.Format("2006-01-02"))
}

func (b *Tracker) monthlyKey(t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:monthly:%s", b.keyPrefix, b.scope, t.Format("2006-01"))
}

func (b *Tracker) totalKey() string {
	return fmt.Sprintf("%sbudget:%s:total", b.keyPrefix, b.scope)
}

// Check verifies the budget allows a new request.
func (b *Tracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetIfNeeded()

	dailyExceeded := b.dailyLimit > 0 && b.dailyUsed >= b.dailyLimit
	monthlyExceeded := b.monthlyLimit > 0 && b.monthlyUsed >= b.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if b.action == ActionReject {
		return domain.ErrTokenQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("scope", b.scope),
		zap.Int64("daily_used", b.dailyUsed),
		zap.Int64("daily_limit", b.dailyLimit),
		zap.Int64("monthly_used", b.monthlyUsed),
		zap.Int64("monthly_limit", b.monthlyLimit),
	)
	return nil
}

// Record registers consumed tokens and queues them for the store if one is attached.
// It never blocks on I/O.
func (b *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	b.resetIfNeeded()
	b.dailyUsed += tokens
	b.monthlyUsed += tokens
	b.totalUsed += tokens
	queued := b.pending != nil && !b.closed
	if queued {
		now := b.now()
		b.pending[b.dailyKey(now)] += tokens
		b.pending[b.monthlyKey(now)] += tokens
		b.pending[b.totalKey()] += tokens
	}
	b.mu.Unlock()

	if !queued {
		return
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// RemainingDaily returns tokens left in the daily budget (-1 if unlimited).
func (b *Tracker) RemainingDaily() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.dailyLimit, b.dailyUsed)
}

// RemainingMonthly returns tokens left in the monthly budget (-1 if unlimited).
func (b *Tracker) RemainingMonthly() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return remaining(b.monthlyLimit, b.monthlyUsed)
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// DailyLimit returns the daily token cap.
func (b *Tracker) DailyLimit() int64 { return b.dailyLimit }

// MonthlyLimit returns the monthly token cap.
func (b *Tracker) MonthlyLimit() int64 { return b.monthlyLimit }

// DailyUsed returns tokens consumed today.
func (b *Tracker) DailyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.dailyUsed
}

// MonthlyUsed returns tokens consumed this month.
func (b *Tracker) MonthlyUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return b.monthlyUsed
}

// TotalUsed returns tokens consumed since the counters were first created.
func (b *Tracker) TotalUsed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalUsed
}

// Now returns the tracker's clock reading in UTC.
func (b *Tracker) Now() time.Time { return b.now() }

// resetIfNeeded zeroes counters when the day or month rolls over.
func (b *Tracker) resetIfNeeded() {
	now := b.now()
	today := truncateToDay(now)
	thisMonth := truncateToMonth(now)

	if today.After(b.lastDayReset) {
		b.dailyUsed = 0
		b.lastDayReset = today
	}
	if thisMonth.After(b.lastMonthReset) {
		b.monthlyUsed = 0
		b.lastMonthReset = thisMonth
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
