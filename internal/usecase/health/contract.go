package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker reports whether the catalog index exists.
type IndexChecker interface {
	Ready(ctx context.Context) (bool, error)
}

// ProviderChecker checks a model provider's availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
