package safety

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Service is the content safety gate.
type Service struct {
	moderator Moderator
	logger    *zap.Logger
}

// New creates a Service.
func New(moderator Moderator, logger *zap.Logger) *Service {
	return &Service{moderator: moderator, logger: logger}
}

// IsClean reports whether text may proceed. Blank text is always clean.
// A moderation failure lets the text through and logs a warning.
func (s *Service) IsClean(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	verdict, err := s.moderator.Moderate(ctx, text)
	if err != nil {
		s.logger.Warn("Moderation unavailable, failing open", zap.String("stage", "safety"), zap.Error(err))
		return true
	}
	if verdict.Flagged {
		s.logger.Info("Query flagged by moderation",
			zap.String("stage", "safety"),
			zap.Strings("categories", verdict.Categories),
		)
	}
	return !verdict.Flagged
}
