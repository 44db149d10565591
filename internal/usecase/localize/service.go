package localize

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Operation labels the localizer's model calls in logs and metrics.
const Operation = "localize"

// Service rewrites fixed English messages into the user's language.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Localize returns base in language, keeping every sentence and example.
// English targets are returned unchanged without a model call, as is base on any failure.
func (s *Service) Localize(ctx context.Context, base string, language domain.Language) string {
	if language.IsEnglish() {
		return base
	}

	out, err := s.generator.Generate(ctx, domain.Prompt{
		Operation:   Operation,
		Instruction: buildPrompt(base, language.Name),
		Temperature: 0,
		MaxTokens:   800,
	})
	if err != nil {
		s.logger.Warn("Localization failed, keeping English", zap.String("stage", "localize"), zap.Error(err))
		return base
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		s.logger.Warn("Localizer returned empty text, keeping English", zap.String("stage", "localize"))
		return base
	}
	return text
}

func buildPrompt(base, languageName string) string {
	return "Return the following message in " + languageName + ".\n" +
		"Rules:\n" +
		"- Preserve ALL content and examples exactly; do NOT shorten or summarize.\n" +
		"- Keep punctuation and parenthetical examples intact.\n" +
		"- Do not add headings or extra labels. Return PLAIN TEXT only.\n\n" +
		"MESSAGE:\n" + base
}
