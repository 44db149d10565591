package health

import (
	"context"
	"errors"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a dependency other than the database is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckDatabase  = "database"
	CheckCatalog   = "catalog"
	CheckLLM       = "llm"
	CheckEmbedding = "embedding"
)

var errIndexMissing = errors.New("catalog index missing")

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	catalog   IndexChecker
	llm       ProviderChecker
	embedding ProviderChecker
}

// New creates a Service. Every dependency except db can be nil; nil checks are skipped.
func New(db DBPinger, catalog IndexChecker, llm, embedding ProviderChecker) *Service {
	return &Service{db: db, catalog: catalog, llm: llm, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[CheckDatabase] = result(s.db.Ping(ctx))

	if s.catalog != nil {
		checks[CheckCatalog] = result(s.indexReady(ctx))
	}
	if s.llm != nil {
		checks[CheckLLM] = result(s.llm.HealthCheck(ctx))
	}
	if s.embedding != nil {
		checks[CheckEmbedding] = result(s.embedding.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[CheckDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) indexReady(ctx context.Context) error {
	ok, err := s.catalog.Ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errIndexMissing
	}
	return nil
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
