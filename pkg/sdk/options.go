package promptdex

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

const (
	driverValkey   = "valkey"
	driverRedis    = "redis"
	driverPostgres = "postgres"
)

type clientConfig struct {
	driver   string
	addrs    []string
	password string
	dsn      string

	embedder   Embedder
	model      string
	dimensions int

	hnswM           int
	hnswEFConstruct int
	maxBatchSize    int
	candidateCap    int

	lexicalWeight  float64
	semanticWeight float64
	historyPool    int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithValkey connects to a Valkey instance with the search module loaded.
// Lexical ranking falls back to keyword matching since valkey-search has no full-text index.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis connects to a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres connects to PostgreSQL with pg_trgm and pgvector installed.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverPostgres
		c.dsn = dsn
	})
}

// WithEmbedder sets the embedding provider and the embedding space it produces.
// Without an embedder semantic ranking is unavailable and hybrid searches degrade to lexical.
func WithEmbedder(e Embedder, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.model = model
		c.dimensions = dimensions
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=32, EFConstruct=400. Ignored on PostgreSQL.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithMaxBatchSize sets the maximum number of items per batch operation.
// Default: 100.
func WithMaxBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxBatchSize = size
	})
}

// WithCandidateCap bounds how many accessible items one retrieval branch may read.
func WithCandidateCap(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.candidateCap = n
	})
}

// WithWeights sets the default per-source fusion weights.
func WithWeights(lexical, semantic float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.lexicalWeight = lexical
		c.semanticWeight = semantic
	})
}

// WithHistory records authenticated queries for autocomplete using a worker
// pool of the given size. History is off by default.
func WithHistory(poolSize int) Option {
	return optionFunc(func(c *clientConfig) {
		c.historyPool = poolSize
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
