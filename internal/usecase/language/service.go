package language

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
)

// Operation labels the detector's model calls in logs and metrics.
const Operation = "detect_language"

var isoCode = regexp.MustCompile(`[a-z]{2}`)

// Service detects the language of a query.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Detect returns the ISO 639-1 code of text, or "en" when the model fails or is unsure.
func (s *Service) Detect(ctx context.Context, text string) string {
	out, err := s.generator.Generate(ctx, domain.Prompt{
		Operation:   Operation,
		Instruction: buildPrompt(text),
		Temperature: 0,
		MaxTokens:   16,
	})
	if err != nil {
		s.logger.Warn("Language detection failed, assuming English", zap.String("stage", "language"), zap.Error(err))
		return domain.DefaultLanguageCode
	}
	return parseCode(out.Text)
}

// DetectLanguage is Detect mapped to a display name.
func (s *Service) DetectLanguage(ctx context.Context, text string) domain.Language {
	return domain.LanguageFromCode(s.Detect(ctx, text))
}

func buildPrompt(text string) string {
	return "Return ONLY the two-letter ISO 639-1 language code of the USER QUERY text.\n" +
		"If uncertain, return 'en'.\n\n" +
		"USER QUERY: " + text
}

func parseCode(reply string) string {
	if code := isoCode.FindString(strings.ToLower(strings.TrimSpace(reply))); code != "" {
		return code
	}
	return domain.DefaultLanguageCode
}
