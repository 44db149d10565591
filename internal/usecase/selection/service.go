package selection

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/answer"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/llmjson"
)

// Operation labels the selector's model calls in logs and metrics.
const Operation = "select"

// Service asks the model to pick one candidate.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Select returns the model's pick. A failed call or unusable reply yields an empty Selection.
func (s *Service) Select(ctx context.Context, query, languageName string, hits []book.Hit) answer.Selection {
	out, err := s.generator.Generate(ctx, domain.Prompt{
		Operation:   Operation,
		Instruction: buildPrompt(query, languageName, hits),
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		s.logger.Warn("Selector call failed", zap.String("stage", "select"), zap.Error(err))
		return answer.Selection{}
	}

	obj, err := llmjson.ExtractObject(out.Text)
	if err != nil {
		s.logger.Warn("Selector reply unparseable",
			zap.String("stage", "select"),
			zap.String("raw", out.Text),
			zap.Error(err),
		)
		return answer.Selection{}
	}

	sel := answer.Selection{
		Title:  llmjson.String(obj, "title"),
		Reason: llmjson.String(obj, "reason"),
	}
	s.logger.Debug("Candidate selected", zap.String("stage", "select"), zap.String("title", sel.Title))
	return sel
}

// ResolveCandidate maps the model's pick onto a retrieved hit: exact title first, then
// case- and whitespace-insensitive. A title the model invented resolves to the top hit.
// hits must not be empty.
func ResolveCandidate(sel answer.Selection, hits []book.Hit) (book.Hit, bool) {
	for i := range hits {
		if hits[i].Title() == sel.Title {
			return hits[i], true
		}
	}
	key := book.TitleKey(sel.Title)
	for i := range hits {
		if hits[i].TitleKey() == key {
			return hits[i], true
		}
	}
	return hits[0], false
}

// ContextBlock renders the numbered candidate list the model scans.
func ContextBlock(hits []book.Hit) string {
	blocks := make([]string, len(hits))
	for i := range hits {
		blocks[i] = fmt.Sprintf("%d. Title: %s\n   Themes: %s\n   Summary: %s",
			i+1, hits[i].Title(), book.JoinThemes(hits[i].Themes()), hits[i].Summary())
	}
	return strings.Join(blocks, "\n\n")
}

func buildPrompt(query, languageName string, hits []book.Hit) string {
	return "You are a helpful book recommender. " +
		"From the CONTEXT list, pick exactly one title (MUST be one from the list). " +
		"If nothing fits the USER QUERY, return an empty title.\n" +
		`Return ONLY JSON: {"title": <exact title or "">, "reason": <one or two sentences>}. ` +
		"Write the `reason` in " + languageName + ".\n\n" +
		"USER QUERY: " + query + "\n\n" +
		"CONTEXT:\n" + ContextBlock(hits) + "\n\n" +
		"Return JSON only."
}
