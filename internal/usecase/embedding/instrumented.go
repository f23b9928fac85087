package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/metrics"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider call.
const DefaultMaxAPIBatchSize = 256

// Budget is the slice of BudgetTracker the embedder needs.
type Budget interface {
	Check(ctx context.Context, path Path) error
	Record(path Path, tokens int64)
	Remaining(path Path) (daily, monthly int64)
}

// InstrumentedEmbedder gates one embedding path with the token budget and accounts its spend.
// A rejected query call surfaces domain.ErrEmbeddingQuotaExceeded, which the search
// orchestrator turns into a degraded semantic branch.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	path     Path
	budget   Budget
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps inner for path. budget may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string, path Path,
	budget Budget, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		path:     path,
		budget:   budget,
		logger:   logger.With(zap.String("embedding_path", string(path))),
	}
}

// Embed checks the budget, delegates and books the tokens against the path.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.admit(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.fail(err, zap.Duration("duration", time.Since(start)))
		return domain.EmbeddingResult{}, fmt.Errorf("%s embed: %w", p.path, err)
	}
	p.settle(ctx, result.TotalTokens)

	p.logger.Debug("Embedding call completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed embeds texts in DefaultMaxAPIBatchSize chunks. The budget is checked before
// every chunk and each finished chunk is booked at once, so tokens spent before a
// rejection are still counted.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	var out domain.BatchEmbeddingResult
	for offset := 0; offset < len(texts); offset += DefaultMaxAPIBatchSize {
		if err := p.admit(ctx); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("chunk at %d: %w", offset, err)
		}

		chunk := texts[offset:min(offset+DefaultMaxAPIBatchSize, len(texts))]
		res, err := p.embedChunk(ctx, chunk)
		if err != nil {
			p.fail(err, zap.Int("chunk_offset", offset), zap.Int("chunk_size", len(chunk)))
			return domain.BatchEmbeddingResult{}, fmt.Errorf("%s batch embed: %w", p.path, err)
		}
		p.settle(ctx, res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

func (p *InstrumentedEmbedder) embedChunk(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

// admit asks the budget whether this path may call the provider.
func (p *InstrumentedEmbedder) admit(ctx context.Context) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx, p.path); err != nil {
		p.fail(err)
		return fmt.Errorf("%s budget: %w", p.path, err)
	}
	return nil
}

// settle books a successful call against the request usage and the path budget.
func (p *InstrumentedEmbedder) settle(ctx context.Context, tokens int) {
	metrics.EmbeddingCallsTotal.WithLabelValues(p.provider, string(p.path), "ok").Inc()
	domain.UsageFromContext(ctx).AddTokens(tokens)
	if tokens <= 0 {
		return
	}
	metrics.EmbeddingPathTokensTotal.WithLabelValues(p.provider, string(p.path)).Add(float64(tokens))

	if p.budget == nil {
		return
	}
	p.budget.Record(p.path, int64(tokens))
	daily, monthly := p.budget.Remaining(p.path)
	remaining := metrics.EmbeddingBudgetTokensRemaining
	remaining.WithLabelValues(p.provider, string(p.path), "daily").Set(float64(daily))
	remaining.WithLabelValues(p.provider, string(p.path), "monthly").Set(float64(monthly))
}

func (p *InstrumentedEmbedder) fail(err error, fields ...zap.Field) {
	outcome := "error"
	if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		outcome = "quota_exceeded"
	}
	metrics.EmbeddingCallsTotal.WithLabelValues(p.provider, string(p.path), outcome).Inc()

	fields = append(fields,
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	// A query failure degrades one search branch. A document failure loses an index write.
	if p.path == PathQuery {
		p.logger.Warn("Embedding call failed", fields...)
		return
	}
	p.logger.Error("Embedding call failed", fields...)
}
