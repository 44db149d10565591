package localize

import (
	"context"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Generator produces free text from an instruction.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error)
}
