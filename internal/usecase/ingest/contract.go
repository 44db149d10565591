package ingest

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/repository/catalog"
)

// Embedder vectorizes document texts in input order.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// CatalogWriter prepares the index and stores embedded entries.
type CatalogWriter interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, entries []catalog.Entry) error
}

// Invalidator drops caches derived from the catalog.
type Invalidator interface {
	Invalidate()
}
