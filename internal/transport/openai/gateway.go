package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

const operationModeration = "moderation"

// GatewayConfig holds chat completion and moderation settings.
type GatewayConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	ModerationModel string
	Provider        string
	Logger          *zap.Logger
}

// Gateway is the chat completion and moderation client.
// It sends every prompt as a single stateless user message.
type Gateway struct {
	client          *openai.Client
	chatModel       string
	moderationModel string
	provider        string
	logger          *zap.Logger
}

// NewGateway creates an OpenAI-compatible language model gateway.
func NewGateway(cfg *GatewayConfig) *Gateway {
	return &Gateway{
		client:          newClient(cfg.APIKey, cfg.BaseURL),
		chatModel:       cfg.ChatModel,
		moderationModel: cfg.ModerationModel,
		provider:        cfg.Provider,
		logger:          cfg.Logger,
	}
}

// Generate implements domain.Generator.
func (g *Gateway) Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: g.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: p.Instruction},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: wireTemperature(p.Temperature),
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(p.Operation, g.chatModel, "error").Inc()
		return domain.Completion{}, parseAPIError("chat completion", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(p.Operation, g.chatModel, "error").Inc()
		return domain.Completion{}, fmt.Errorf("chat completion returned no choices: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(p.Operation, g.chatModel, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(p.Operation, g.chatModel).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(p.Operation, g.chatModel, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(p.Operation, g.chatModel, "completion").
			Add(float64(resp.Usage.CompletionTokens))
	}

	return domain.Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// Moderate implements domain.Moderator. Categories lists the flagged category names, sorted.
func (g *Gateway) Moderate(ctx context.Context, text string) (domain.Moderation, error) {
	start := time.Now()
	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: g.moderationModel,
	})
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(operationModeration, g.moderationModel, "error").Inc()
		return domain.Moderation{}, parseAPIError("moderation", err, domain.ErrLLMProviderError)
	}
	if len(resp.Results) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(operationModeration, g.moderationModel, "error").Inc()
		return domain.Moderation{}, fmt.Errorf("moderation returned no results: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(operationModeration, g.moderationModel, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(operationModeration, g.moderationModel).Observe(duration.Seconds())

	result := resp.Results[0]
	return domain.Moderation{
		Flagged:    result.Flagged,
		Categories: flaggedCategories(result.Categories),
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Gateway) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// wireTemperature keeps an explicit zero on the wire; the client drops zero values as unset,
// which most providers treat as 1.0.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

func flaggedCategories(categories openai.ResultCategories) []string {
	raw, err := json.Marshal(categories)
	if err != nil {
		return nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil
	}
	var out []string
	for name, on := range flags {
		if on {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
