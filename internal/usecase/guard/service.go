package guard

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain/classification"
)

// Service is the exact-match guard. It refuses to let the pipeline substitute a
// different book when the user named one the catalog does not hold.
type Service struct {
	index  *TitleIndex
	policy Policy
	logger *zap.Logger
}

// New creates a Service.
func New(index *TitleIndex, policy Policy, logger *zap.Logger) *Service {
	if policy == "" {
		policy = PolicySubstring
	}
	return &Service{index: index, policy: policy, logger: logger}
}

// MustBlock reports whether the query demands an entity that no catalog title contains.
// If the catalog cannot be listed, every demanded entity is blocked.
func (s *Service) MustBlock(ctx context.Context, c classification.Classification) bool {
	if !c.DemandsExactEntity() {
		return false
	}

	titles, err := s.index.Titles(ctx)
	if err != nil {
		s.logger.Warn("Title listing failed, blocking exact request", zap.String("stage", "guard"), zap.Error(err))
		return true
	}

	target := Normalize(c.Entity.Text)
	for _, t := range titles {
		if s.policy.matches(target, t) {
			return false
		}
	}

	s.logger.Debug("Exact entity missing from catalog",
		zap.String("stage", "guard"),
		zap.String("entity", c.Entity.Text),
		zap.String("policy", string(s.policy)),
	)
	return true
}

// Invalidate drops the cached title index after a catalog reload.
func (s *Service) Invalidate() { s.index.Invalidate() }
