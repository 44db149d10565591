package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/answer"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/classification"
	"github.com/kailas-cloud/librarian/internal/logger"
	"github.com/kailas-cloud/librarian/internal/metrics"
	"github.com/kailas-cloud/librarian/internal/usecase/selection"
)

// Config bounds a single chat request.
type Config struct {
	DefaultK       int
	MaxK           int
	RequestTimeout time.Duration
}

// Deps are the pipeline stages. Retriever and Catalog are nil when the catalog
// backend failed to start; book requests then fail with ErrRetrieverUnavailable.
type Deps struct {
	Safety     SafetyFilter
	Language   LanguageDetector
	Classifier Classifier
	Guard      ExactMatchGuard
	Retriever  Retriever
	Selector   Selector
	Catalog    CatalogLookup
	Composer   Composer
	Localizer  Localizer
}

// Service runs the guardrail pipeline for one query at a time. It holds no per-query state.
type Service struct {
	deps   Deps
	cfg    Config
	stages []stage
	logger *zap.Logger
}

// New creates a Service.
func New(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 3
	}
	if cfg.MaxK < cfg.DefaultK {
		cfg.MaxK = cfg.DefaultK
	}
	s := &Service{deps: deps, cfg: cfg, logger: logger}
	s.stages = []stage{
		{"safety", s.checkSafety},
		{"language", s.detectLanguage},
		{"classify", s.classify},
		{"guard", s.guard},
		{"retrieve", s.retrieve},
		{"select", s.selectCandidate},
		{"resolve", s.resolve},
		{"compose", s.compose},
	}
	return s
}

// state is the request-scoped data the stages accumulate.
type state struct {
	query  string
	k      int
	lang   domain.Language
	cls    classification.Classification
	hits   []book.Hit
	sel    answer.Selection
	entry  book.Book
	answer *answer.Answer
}

// stage advances the state or sets a terminal answer.
type stage struct {
	name string
	run  func(ctx context.Context, st *state) error
}

// ClampK resolves the requested candidate count: non-positive means the default,
// anything above the cap is lowered to it.
func (s *Service) ClampK(k int) int {
	if k <= 0 {
		return s.cfg.DefaultK
	}
	return min(k, s.cfg.MaxK)
}

// Ask answers one query. Only retrieval failures and an unavailable catalog surface as errors;
// every other failure degrades to a safe answer.
func (s *Service) Ask(ctx context.Context, query string, k int) (answer.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return answer.Answer{}, fmt.Errorf("query is required: %w", domain.ErrInvalidRequest)
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	log := logger.FromContextOr(ctx, s.logger)
	start := time.Now()
	st := &state{query: query, k: s.ClampK(k), lang: domain.LanguageFromCode(domain.DefaultLanguageCode)}

	for _, stg := range s.stages {
		if err := stg.run(ctx, st); err != nil {
			metrics.PipelineOutcomesTotal.WithLabelValues("error").Inc()
			log.Warn("Pipeline failed", zap.String("stage", stg.name), zap.Error(err))
			return answer.Answer{}, err
		}
		if st.answer != nil {
			break
		}
		log.Debug("Stage passed", zap.String("stage", stg.name))
	}

	ans := *st.answer
	ans.Language = st.lang.Code
	metrics.PipelineOutcomesTotal.WithLabelValues(string(ans.Outcome)).Inc()
	metrics.PipelineDuration.WithLabelValues(string(ans.Outcome)).Observe(time.Since(start).Seconds())
	log.Info("Query answered",
		zap.String("outcome", string(ans.Outcome)),
		zap.String("intent", string(st.cls.Intent)),
		zap.String("lang", st.lang.Code),
		zap.Int("hits", len(st.hits)),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

func (s *Service) checkSafety(ctx context.Context, st *state) error {
	if !s.deps.Safety.IsClean(ctx, st.query) {
		st.finish(answer.Refusal(st.query, MessageUnsafe, answer.OutcomeUnsafe, nil))
	}
	return nil
}

func (s *Service) detectLanguage(ctx context.Context, st *state) error {
	st.lang = s.deps.Language.DetectLanguage(ctx, st.query)
	return nil
}

func (s *Service) classify(ctx context.Context, st *state) error {
	st.cls = s.deps.Classifier.Classify(ctx, st.query)
	if !st.cls.IsBookRequest() {
		st.finish(s.refuse(ctx, st, MessageDecline, answer.OutcomeDeclined, nil))
		return nil
	}
	if s.deps.Retriever == nil || s.deps.Catalog == nil {
		return domain.ErrRetrieverUnavailable
	}
	return nil
}

func (s *Service) guard(ctx context.Context, st *state) error {
	if s.deps.Guard.MustBlock(ctx, st.cls) {
		st.finish(s.refuse(ctx, st, MessageExactBlocked(st.cls.Entity.Text), answer.OutcomeExactBlocked, nil))
	}
	return nil
}

func (s *Service) retrieve(ctx context.Context, st *state) error {
	hits, err := s.deps.Retriever.Search(ctx, st.query, st.k)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	st.hits = hits
	if len(hits) == 0 {
		st.finish(s.refuse(ctx, st, MessageNoHits, answer.OutcomeNoHits, nil))
	}
	return nil
}

func (s *Service) selectCandidate(ctx context.Context, st *state) error {
	st.sel = s.deps.Selector.Select(ctx, st.query, st.lang.Name, st.hits)
	if st.sel.IsEmpty() {
		st.finish(s.refuse(ctx, st, MessageNoSelection, answer.OutcomeNoSelection, answer.ContextFromHits(st.hits)))
	}
	return nil
}

// resolve looks the chosen entry up in the catalog. A title outside the candidates is
// still honored if the catalog holds it; otherwise the top hit is used.
func (s *Service) resolve(ctx context.Context, st *state) error {
	log := logger.FromContextOr(ctx, s.logger)

	hit, matched := selection.ResolveCandidate(st.sel, st.hits)
	title := hit.Title()
	if !matched {
		title = st.sel.Title
	}

	entry, err := s.deps.Catalog.GetByTitle(ctx, title)
	switch {
	case err == nil:
		st.entry = entry
	case matched:
		log.Warn("Catalog lookup failed, using retrieved entry",
			zap.String("stage", "resolve"), zap.String("title", title), zap.Error(err))
		st.entry = hit.Book
	default:
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("Catalog lookup failed", zap.String("stage", "resolve"), zap.Error(err))
		}
		log.Debug("Selected title not in catalog, using top hit",
			zap.String("stage", "resolve"), zap.String("title", title))
		st.entry = hit.Book
	}
	return nil
}

func (s *Service) compose(ctx context.Context, st *state) error {
	text := s.deps.Composer.Compose(ctx, st.query, st.lang.Name, st.entry, st.sel.Reason)
	st.finish(answer.Composed(st.query, st.entry.Title(), text, answer.ContextFromHits(st.hits)))
	return nil
}

func (s *Service) refuse(
	ctx context.Context, st *state, base string, outcome answer.Outcome, items []answer.ContextItem,
) answer.Answer {
	return answer.Refusal(st.query, s.deps.Localizer.Localize(ctx, base, st.lang), outcome, items)
}

func (st *state) finish(a answer.Answer) { st.answer = &a }
