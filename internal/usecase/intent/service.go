package intent

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/classification"
	"github.com/kailas-cloud/librarian/internal/llmjson"
)

// Operation labels the classifier's model calls in logs and metrics.
const Operation = "classify"

const instruction = `You are a strict classifier for a book recommender.
Return ONLY JSON.
Decide:
- intent: 'book_request' if the user asks for a book recommendation, a theme/vibe/genre, summary, or mentions an author/title in a way that implies a request for a book.
- intent: 'chit_chat' for greetings/small talk/personal questions.
- intent: 'other' for anything else.
- named_entity: extract a single explicit person/author/title mentioned, else 'none'.
- must_exact_match: true if the user asks ABOUT a specific real person/author/title (e.g., 'a book about Michelle Obama', 'Find "Dune"').
Example outputs:
{ "intent":"chit_chat", "named_entity":{"text":"","type":"none"}, "must_exact_match":false, "reason":"greeting" }
{ "intent":"book_request", "named_entity":{"text":"Michelle Obama","type":"person"}, "must_exact_match":true, "reason":"specific person requested" }
{ "intent":"book_request", "named_entity":{"text":"","type":"none"}, "must_exact_match":false, "reason":"theme request" }

`

// Service classifies queries for the guardrail pipeline.
type Service struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Service.
func New(generator Generator, logger *zap.Logger) *Service {
	return &Service{generator: generator, logger: logger}
}

// Classify never fails: an unusable reply becomes classification.Fallback().
func (s *Service) Classify(ctx context.Context, query string) classification.Classification {
	out, err := s.generator.Generate(ctx, domain.Prompt{
		Operation:   Operation,
		Instruction: instruction + "USER QUERY:\n" + query + "\n\nReturn JSON only.",
		Temperature: 0,
		MaxTokens:   300,
	})
	if err != nil {
		s.logger.Warn("Classifier call failed, using fallback", zap.String("stage", "classify"), zap.Error(err))
		return classification.Fallback()
	}

	obj, err := llmjson.ExtractObject(out.Text)
	if err != nil {
		s.logger.Warn("Classifier reply unparseable, using fallback",
			zap.String("stage", "classify"),
			zap.String("raw", out.Text),
			zap.Error(err),
		)
		return classification.Fallback()
	}

	c := parse(obj)
	s.logger.Debug("Query classified",
		zap.String("stage", "classify"),
		zap.String("intent", string(c.Intent)),
		zap.String("entity_type", string(c.Entity.Type)),
		zap.Bool("must_exact_match", c.MustExactMatch),
	)
	return c
}

func parse(obj map[string]any) classification.Classification {
	c := classification.Classification{
		Intent:         classification.ParseIntent(llmjson.String(obj, "intent")),
		Entity:         classification.NamedEntity{Type: classification.EntityNone},
		MustExactMatch: llmjson.Bool(obj, "must_exact_match"),
		Reason:         llmjson.String(obj, "reason"),
	}

	// The model sometimes returns the entity as a bare string ("none").
	if ne, ok := obj["named_entity"].(map[string]any); ok {
		c.Entity.Text = llmjson.String(ne, "text")
		c.Entity.Type = classification.ParseEntityType(llmjson.String(ne, "type"))
	}
	return c
}
