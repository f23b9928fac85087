package health

import (
	"context"

	"github.com/kailas-cloud/promptdex/internal/usecase/embedding"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BudgetReporter exposes the embedding token budget.
type BudgetReporter interface {
	Snapshot() embedding.BudgetSnapshot
}
