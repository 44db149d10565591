package chat

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/answer"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/classification"
)

// SafetyFilter gates abusive input.
type SafetyFilter interface {
	IsClean(ctx context.Context, text string) bool
}

// LanguageDetector infers the query language.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) domain.Language
}

// Classifier decides whether a query is in scope.
type Classifier interface {
	Classify(ctx context.Context, query string) classification.Classification
}

// ExactMatchGuard blocks substitutions for demanded entities the catalog lacks.
type ExactMatchGuard interface {
	MustBlock(ctx context.Context, c classification.Classification) bool
}

// Retriever finds the closest catalog entries.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]book.Hit, error)
}

// Selector lets the model pick one candidate.
type Selector interface {
	Select(ctx context.Context, query, languageName string, hits []book.Hit) answer.Selection
}

// CatalogLookup fetches a stored entry by title.
type CatalogLookup interface {
	GetByTitle(ctx context.Context, title string) (book.Book, error)
}

// Composer writes the final recommendation.
type Composer interface {
	Compose(ctx context.Context, query, languageName string, entry book.Book, reason string) string
}

// Localizer rewrites fixed English messages into the user's language.
type Localizer interface {
	Localize(ctx context.Context, base string, language domain.Language) string
}
