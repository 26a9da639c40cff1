package health

import "context"

// DBPinger checks the operational store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CatalogPinger checks the product catalog availability.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
