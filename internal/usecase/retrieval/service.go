package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Service retrieves the catalog entries closest to a query.
type Service struct {
	embedder Embedder
	searcher Searcher
	logger   *zap.Logger
}

// New creates a Service.
func New(embedder Embedder, searcher Searcher, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, searcher: searcher, logger: logger}
}

// Search returns at most k hits ordered by descending score with 1-based ranks.
// An empty catalog yields an empty slice. Embedding and store errors are returned as is.
func (s *Service) Search(ctx context.Context, query string, k int) ([]book.Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}

	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.searcher.Search(ctx, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	// Store order is not trusted.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score() > hits[j].Score() })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]book.Hit, len(hits))
	for i := range hits {
		out[i] = hits[i].WithRank(i + 1)
	}

	s.logger.Debug("Catalog searched",
		zap.String("stage", "retrieve"),
		zap.Int("k", k),
		zap.Int("hits", len(out)),
	)
	return out, nil
}
