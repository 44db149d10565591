package domain

import "context"

// Prompt is a single stateless instruction for the language model.
// Operation names the pipeline stage and is used only for logs and metrics.
type Prompt struct {
	Operation   string
	Instruction string
	Temperature float32
	MaxTokens   int
}

// Completion is the model's plain-text reply plus token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator produces free text from an instruction.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Completion, error)
}

// Moderation is the verdict of the content moderation service.
type Moderation struct {
	Flagged    bool
	Categories []string
}

// Moderator classifies text as acceptable or not.
type Moderator interface {
	Moderate(ctx context.Context, text string) (Moderation, error)
}
