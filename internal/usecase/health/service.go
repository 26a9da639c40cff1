package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Search still works in keyword mode.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
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

// Report aggregates health check results. BreakerState mirrors the embedding
// circuit breaker so operators can tell a provider outage from a local one.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	BreakerState string
}

// Service coordinates health checks.
type Service struct {
	db           DBPinger
	catalog      CatalogPinger
	embedding    EmbeddingChecker
	breakerState func() string
}

// New creates a Service. embedding and breakerState can be nil.
func New(db DBPinger, catalog CatalogPinger, embedding EmbeddingChecker, breakerState func() string) *Service {
	return &Service{db: db, catalog: catalog, embedding: embedding, breakerState: breakerState}
}

// Check runs health checks against all components. The operational store is
// load-bearing: when it is down the service is unhealthy, any other failure
// only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	dbDown := false
	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		dbDown = true
	} else {
		checks["database"] = CheckOK
	}

	if err := s.catalog.Ping(ctx); err != nil {
		checks["catalog"] = CheckError
	} else {
		checks["catalog"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if dbDown {
		status = Unhealthy
	}

	report := Report{Status: status, Checks: checks}
	if s.breakerState != nil {
		report.BreakerState = s.breakerState()
	}
	return report
}
