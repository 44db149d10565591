package safety

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Moderator classifies text with the hosted moderation service.
type Moderator interface {
	Moderate(ctx context.Context, text string) (domain.Moderation, error)
}
