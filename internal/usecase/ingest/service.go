package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	dombatch "github.com/kailas-cloud/librarian/internal/domain/batch"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/metrics"
	"github.com/kailas-cloud/librarian/internal/repository/catalog"
)

// Defaults for Config.
const (
	DefaultBatchSize   = 128
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Config tunes batching and retries.
type Config struct {
	BatchSize   int
	MaxAttempts uint
	RetryDelay  time.Duration
}

// Report summarizes one ingestion run.
type Report struct {
	RunID   string
	Total   int
	Results []dombatch.Result
}

// Count returns the number of records with the given status.
func (r Report) Count(status dombatch.ItemStatus) int {
	return dombatch.Tally(r.Results)[status]
}

// Service loads seed files into the catalog.
type Service struct {
	embedder    Embedder
	catalog     CatalogWriter
	invalidator Invalidator
	cfg         Config
	logger      *zap.Logger
}

// New creates an ingestion service.
func New(embedder Embedder, catalog CatalogWriter, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Service{embedder: embedder, catalog: catalog, cfg: cfg, logger: logger}
}

// WithInvalidator registers a cache to drop after every run that stored at least one record.
func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.invalidator = inv
	return s
}

// IngestFile reads and ingests a seed file.
func (s *Service) IngestFile(ctx context.Context, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	return s.Ingest(ctx, data)
}

// Ingest validates, embeds and stores the records in data. Per-record failures are
// reported in the Report; the error is set only when the run could not start.
func (s *Service) Ingest(ctx context.Context, data []byte) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", report.RunID))

	books, rejected, err := parseSeed(data)
	if err != nil {
		return report, err
	}
	report.Total = len(books) + len(rejected)
	report.Results = append(report.Results, rejected...)

	err = retry.Do(
		func() error { return s.catalog.EnsureIndex(ctx) },
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return report, fmt.Errorf("ensure catalog index: %w", err)
	}

	stored := 0
	for start := 0; start < len(books); start += s.cfg.BatchSize {
		chunk := books[start:min(start+s.cfg.BatchSize, len(books))]

		results, cascade := s.ingestBatch(ctx, log, chunk)
		report.Results = append(report.Results, results...)
		stored += dombatch.Tally(results)[dombatch.StatusOK]

		if cascade != nil {
			for _, b := range books[start+len(chunk):] {
				report.Results = append(report.Results, dombatch.NewError(b.ID(), cascade))
			}
			break
		}
	}

	if stored > 0 && s.invalidator != nil {
		s.invalidator.Invalidate()
	}

	for status, n := range dombatch.Tally(report.Results) {
		metrics.CatalogIngestedTotal.WithLabelValues(string(status)).Add(float64(n))
	}
	log.Info("Catalog ingested",
		zap.Int("total", report.Total),
		zap.Int("stored", stored),
		zap.Int("duplicates", report.Count(dombatch.StatusDuplicate)),
		zap.Int("invalid", report.Count(dombatch.StatusInvalid)),
		zap.Int("failed", report.Count(dombatch.StatusError)),
	)
	return report, nil
}

// ingestBatch embeds and stores one chunk. A non-nil cascade error means the remaining
// chunks must not be attempted (quota exhausted or context done).
func (s *Service) ingestBatch(ctx context.Context, log *zap.Logger, chunk []book.Book) ([]dombatch.Result, error) {
	texts := make([]string, len(chunk))
	for i := range chunk {
		texts[i] = chunk[i].Document()
	}

	var res domain.BatchEmbeddingResult
	err := retry.Do(
		func() error {
			var err error
			res, err = s.embedder.BatchEmbed(ctx, texts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, domain.ErrTokenQuotaExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Embedding batch failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err == nil && len(res.Embeddings) != len(chunk) {
		err = fmt.Errorf("got %d vectors for %d records: %w",
			len(res.Embeddings), len(chunk), domain.ErrEmbeddingProviderError)
	}
	if err != nil {
		err = fmt.Errorf("vectorize: %w", err)
		var cascade error
		if errors.Is(err, domain.ErrTokenQuotaExceeded) || ctx.Err() != nil {
			cascade = err
		}
		return failAll(chunk, err), cascade
	}

	entries := make([]catalog.Entry, len(chunk))
	for i := range chunk {
		entries[i] = catalog.Entry{Book: chunk[i], Vector: res.Embeddings[i]}
	}
	if err := s.catalog.Upsert(ctx, entries); err != nil {
		return failAll(chunk, fmt.Errorf("upsert: %w", err)), nil
	}

	out := make([]dombatch.Result, len(chunk))
	for i := range chunk {
		out[i] = dombatch.NewOK(chunk[i].ID())
	}
	return out, nil
}

func failAll(chunk []book.Book, err error) []dombatch.Result {
	out := make([]dombatch.Result, len(chunk))
	for i := range chunk {
		out[i] = dombatch.NewError(chunk[i].ID(), err)
	}
	return out
}
