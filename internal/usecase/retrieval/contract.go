package retrieval

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Embedder turns the query into a vector with the catalog's embedding model.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs a KNN search over the catalog.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]book.Hit, error)
}
