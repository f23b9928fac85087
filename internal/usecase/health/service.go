package health

import (
	"context"

	"github.com/kailas-cloud/promptdex/internal/usecase/embedding"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Search keeps answering from the remaining sources.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckExhausted indicates a rejecting budget with no tokens left.
	CheckExhausted CheckResult = "exhausted"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Budget *embedding.BudgetSnapshot
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	budget    BudgetReporter
}

// New creates a Service. embedding and budget can be nil.
func New(db DBPinger, embedding EmbeddingChecker, budget BudgetReporter) *Service {
	return &Service{db: db, embedding: embedding, budget: budget}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	var snap *embedding.BudgetSnapshot
	if s.budget != nil {
		b := s.budget.Snapshot()
		snap = &b
		checks["budget"] = CheckOK
		// A spent document share leaves search untouched, so only the full limits count.
		if b.Action == string(embedding.BudgetActionReject) && (b.DailyExhausted || b.MonthlyExhausted) {
			checks["budget"] = CheckExhausted
		}
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Budget: snap}
}
