package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/config"
	dbRedis "github.com/kailas-cloud/librarian/internal/db/redis"
	"github.com/kailas-cloud/librarian/internal/metrics"
	budgetrepo "github.com/kailas-cloud/librarian/internal/repository/budget"
	"github.com/kailas-cloud/librarian/internal/repository/catalog"
	"github.com/kailas-cloud/librarian/internal/repository/embcache"
	openaiT "github.com/kailas-cloud/librarian/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/librarian/internal/usecase/budget"
	"github.com/kailas-cloud/librarian/internal/usecase/chat"
	"github.com/kailas-cloud/librarian/internal/usecase/compose"
	"github.com/kailas-cloud/librarian/internal/usecase/embedding"
	"github.com/kailas-cloud/librarian/internal/usecase/guard"
	healthuc "github.com/kailas-cloud/librarian/internal/usecase/health"
	"github.com/kailas-cloud/librarian/internal/usecase/ingest"
	"github.com/kailas-cloud/librarian/internal/usecase/intent"
	"github.com/kailas-cloud/librarian/internal/usecase/language"
	"github.com/kailas-cloud/librarian/internal/usecase/llm"
	"github.com/kailas-cloud/librarian/internal/usecase/localize"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
	"github.com/kailas-cloud/librarian/internal/usecase/safety"
	"github.com/kailas-cloud/librarian/internal/usecase/selection"
	usageuc "github.com/kailas-cloud/librarian/internal/usecase/usage"
)

// Budget counters outlive their period so a restart just after midnight still sees yesterday.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// app is the composition root shared by every subcommand.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store     *dbRedis.Store
	tracker   *budgetuc.Tracker
	gateway   *openaiT.Gateway
	embedder  *openaiT.Embedder
	model     *llm.InstrumentedGateway
	vectors   *embedding.InstrumentedEmbedder
	catalog   *catalog.Repo
	guard     *guard.Service
	retrieval *retrieval.Service
	ingest    *ingest.Service
	usage     *usageuc.Service
	health    *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	policy, err := guard.ParsePolicy(cfg.Chat.ExactMatchPolicy)
	if err != nil {
		return nil, err
	}

	metrics.Register()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	a := &app{cfg: cfg, logger: logger, store: store}

	// One tracker is shared by chat completions, embeddings and the usage report.
	// Zero limits still count tokens so /usage has something to show.
	action := budgetuc.ActionWarn
	if cfg.LLM.Budget.Action == string(budgetuc.ActionReject) {
		action = budgetuc.ActionReject
	}
	a.tracker = budgetuc.NewTracker(
		cfg.LLM.Provider, cfg.Catalog.KeyPrefix,
		cfg.LLM.Budget.DailyTokenLimit, cfg.LLM.Budget.MonthlyTokenLimit, action, logger,
	).WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthlyTTL))

	llmTimeout := time.Duration(cfg.LLM.RequestTimeoutSec) * time.Second

	a.gateway = openaiT.NewGateway(&openaiT.GatewayConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		ChatModel:       cfg.LLM.ChatModel,
		ModerationModel: cfg.LLM.ModerationModel,
		Provider:        cfg.LLM.Provider,
		Logger:          logger,
	})
	a.model = llm.NewInstrumentedGateway(a.gateway, a.gateway, cfg.LLM.ChatModel, llmTimeout, a.tracker, logger)

	// OpenAI -> Cached -> Instrumented
	a.embedder = openaiT.NewEmbedder(&openaiT.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.EmbeddingModel,
		Dimensions: cfg.LLM.Dimensions,
		Provider:   cfg.LLM.Provider,
		Logger:     logger,
	})
	cached := embcache.New(a.embedder, store, embcache.Config{
		KeyPrefix: cfg.Catalog.KeyPrefix,
		Model:     cfg.LLM.EmbeddingModel,
		TTL:       time.Duration(cfg.LLM.EmbedCacheTTLSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, logger)
	a.vectors = embedding.NewInstrumentedEmbedder(
		cached, cfg.LLM.Provider, cfg.LLM.EmbeddingModel, llmTimeout, a.tracker, logger,
	)

	a.catalog = catalog.New(store, cfg.Catalog.KeyPrefix, cfg.LLM.Dimensions).WithHNSW(catalog.HNSWConfig{
		M:           cfg.Catalog.HNSWM,
		EFConstruct: cfg.Catalog.HNSWEFConstruct,
	})
	a.guard = guard.New(guard.NewTitleIndex(a.catalog, logger), policy, logger)
	a.retrieval = retrieval.New(a.vectors, a.catalog, logger)
	a.ingest = ingest.New(a.vectors, a.catalog, ingest.Config{
		BatchSize:   cfg.Catalog.IngestBatchSize,
		MaxAttempts: uint(cfg.Catalog.IngestMaxAttempts),
	}, logger).WithInvalidator(a.guard)

	a.usage = usageuc.New(a.tracker)
	a.health = healthuc.New(store, a.catalog, a.gateway, a.embedder)

	logger.Info("Services created",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("chat_model", cfg.LLM.ChatModel),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.Int("dimensions", cfg.LLM.Dimensions),
		zap.String("exact_match_policy", string(policy)),
	)
	return a, nil
}

// prepareCatalog makes sure the vector index exists. A failure leaves the
// service up but refuses book requests.
func (a *app) prepareCatalog(ctx context.Context) bool {
	if err := a.catalog.EnsureIndex(ctx); err != nil {
		a.logger.Error("Catalog unavailable, book requests will be refused", zap.Error(err))
		return false
	}
	if n, err := a.catalog.Count(ctx); err == nil {
		a.logger.Info("Catalog ready", zap.String("index", a.catalog.IndexName()), zap.Int("books", n))
		if n == 0 {
			a.logger.Warn("Catalog is empty, run `librarian ingest` to load the seed file")
		}
	}
	return true
}

// chatService assembles the pipeline. Retrieval stages stay nil interfaces
// when the catalog is not ready.
func (a *app) chatService(catalogReady bool) *chat.Service {
	deps := chat.Deps{
		Safety:     safety.New(a.model, a.logger),
		Language:   language.New(a.model, a.logger),
		Classifier: intent.New(a.model, a.logger),
		Guard:      a.guard,
		Selector:   selection.New(a.model, a.logger),
		Composer:   compose.New(a.model, a.logger),
		Localizer:  localize.New(a.model, a.logger),
	}
	// Assigning a nil *Repo would produce a non-nil interface.
	if catalogReady {
		deps.Retriever = a.retrieval
		deps.Catalog = a.catalog
	}
	return chat.New(deps, chat.Config{
		DefaultK:       a.cfg.Chat.DefaultK,
		MaxK:           a.cfg.Chat.MaxK,
		RequestTimeout: time.Duration(a.cfg.Chat.RequestTimeoutSec) * time.Second,
	}, a.logger)
}

func (a *app) Close() {
	a.tracker.Close()
	a.store.Close()
}
