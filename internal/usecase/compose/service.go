package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Operation labels the composer's model calls in logs and metrics.
const Operation = "compose"

// toolResult is the stored record handed to the model as grounding.
type toolResult struct {
	Found   bool     `json:"found"`
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Themes  []string `json:"themes"`
}

// Service writes the final recommendation.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Compose returns a short recommendation of entry in languageName that quotes the stored summary.
// If the model fails or replies with nothing, the answer is assembled from the stored data.
func (s *Service) Compose(ctx context.Context, query, languageName string, entry book.Book, reason string) string {
	prompt, err := buildPrompt(query, languageName, entry, reason)
	if err != nil {
		s.logger.Warn("Composer prompt failed, using grounded fallback", zap.String("stage", "compose"), zap.Error(err))
		return Fallback(entry, reason)
	}

	out, err := s.generator.Generate(ctx, domain.Prompt{
		Operation:   Operation,
		Instruction: prompt,
		Temperature: 0.4,
		MaxTokens:   600,
	})
	if err != nil {
		s.logger.Warn("Composer call failed, using grounded fallback", zap.String("stage", "compose"), zap.Error(err))
		return Fallback(entry, reason)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		s.logger.Warn("Composer returned empty text, using grounded fallback", zap.String("stage", "compose"))
		return Fallback(entry, reason)
	}
	return text
}

// Fallback renders the title, the selector's reason when present, and the summary verbatim.
func Fallback(entry book.Book, reason string) string {
	parts := []string{entry.Title()}
	if r := strings.TrimSpace(reason); r != "" {
		parts = append(parts, r)
	}
	parts = append(parts, entry.Summary())
	return strings.Join(parts, "\n\n")
}

func buildPrompt(query, languageName string, entry book.Book, reason string) (string, error) {
	tool, err := encodeToolResult(entry)
	if err != nil {
		return "", err
	}
	return "Compose a concise recommendation in " + languageName + ". " +
		"Mention the chosen title once, explain briefly why it fits the query, " +
		"then include the full stored summary. Keep it under 150 words.\n\n" +
		"USER QUERY: " + query + "\n\n" +
		"CHOSEN TITLE: " + entry.Title() + "\n" +
		"REASON: " + reason + "\n\n" +
		"TOOL RESULT (JSON):\n" + tool, nil
}

// encodeToolResult renders the stored record as JSON, leaving HTML characters unescaped.
func encodeToolResult(entry book.Book) (string, error) {
	themes := entry.Themes()
	if themes == nil {
		themes = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(toolResult{
		Found:   true,
		ID:      entry.ID(),
		Title:   entry.Title(),
		Summary: entry.Summary(),
		Themes:  themes,
	})
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
