package guard

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/librarian/internal/metrics"
)

const (
	titleIndexKey      = "titles"
	titleIndexBuildTTL = 10 * time.Second
)

// TitleIndex caches the normalized catalog titles for the process lifetime.
// The first caller builds it, concurrent callers share that build, and later reads are lock-free.
type TitleIndex struct {
	lister     TitleLister
	group      singleflight.Group
	titles     atomic.Pointer[[]string]
	generation atomic.Uint64
	logger     *zap.Logger
}

// NewTitleIndex creates an empty index backed by lister.
func NewTitleIndex(lister TitleLister, logger *zap.Logger) *TitleIndex {
	return &TitleIndex{lister: lister, logger: logger}
}

// Titles returns the normalized titles, building the index on first use.
// A listing failure is returned and not cached.
func (x *TitleIndex) Titles(ctx context.Context) ([]string, error) {
	if p := x.titles.Load(); p != nil {
		return *p, nil
	}

	v, err, _ := x.group.Do(titleIndexKey, func() (any, error) {
		if p := x.titles.Load(); p != nil {
			return *p, nil
		}
		return x.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (x *TitleIndex) build(ctx context.Context) ([]string, error) {
	gen := x.generation.Load()

	// Shared by every waiter, so one caller's cancellation must not fail the rest.
	buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), titleIndexBuildTTL)
	defer cancel()

	raw, err := x.lister.ListTitles(buildCtx)
	if err != nil {
		metrics.TitleIndexBuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list titles: %w", err)
	}

	seen := make(map[string]struct{}, len(raw))
	titles := make([]string, 0, len(raw))
	for _, t := range raw {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		titles = append(titles, n)
	}

	// An Invalidate during the scan means the result may be stale; hand it to
	// this flight's callers but do not publish it.
	if x.generation.Load() == gen {
		x.titles.Store(&titles)
	}
	metrics.TitleIndexBuildsTotal.WithLabelValues("ok").Inc()
	x.logger.Debug("Title index built", zap.Int("titles", len(titles)))
	return titles, nil
}

// Invalidate drops the cached titles. The next Titles call rebuilds them.
func (x *TitleIndex) Invalidate() {
	x.generation.Add(1)
	x.titles.Store(nil)
	x.group.Forget(titleIndexKey)
}
