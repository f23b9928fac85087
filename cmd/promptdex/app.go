package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/config"
	"github.com/kailas-cloud/promptdex/internal/db"
	dbRedis "github.com/kailas-cloud/promptdex/internal/db/redis"
	dbValkey "github.com/kailas-cloud/promptdex/internal/db/valkey"
	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/promptdex/internal/repository/budget"
	"github.com/kailas-cloud/promptdex/internal/repository/embcache"
	historyrepo "github.com/kailas-cloud/promptdex/internal/repository/history"
	itemrepo "github.com/kailas-cloud/promptdex/internal/repository/item"
	"github.com/kailas-cloud/promptdex/internal/repository/postgres"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
	vectorrepo "github.com/kailas-cloud/promptdex/internal/repository/vector"
	openaiEmb "github.com/kailas-cloud/promptdex/internal/transport/openai"
	"github.com/kailas-cloud/promptdex/internal/usecase/backfill"
	batchuc "github.com/kailas-cloud/promptdex/internal/usecase/batch"
	"github.com/kailas-cloud/promptdex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/promptdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/promptdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/promptdex/internal/usecase/search"
	suggestuc "github.com/kailas-cloud/promptdex/internal/usecase/suggest"
)

// itemStore is every item capability the services need. Both backends satisfy it.
type itemStore interface {
	searchuc.ItemStore
	suggestuc.TitleStore
	catalog.ItemRepository
	batchuc.ItemWriter
	backfill.ItemReader
	EnsureIndex(ctx context.Context) error
}

// vectorStore is every vector capability the services need.
type vectorStore interface {
	searchuc.VectorStore
	catalog.VectorRepository
	backfill.VectorChecker
	EnsureIndex(ctx context.Context, model string, dims int) error
}

// historyStore records and reads query history.
type historyStore interface {
	searchuc.HistoryRecorder
	suggestuc.HistoryReader
}

// backend is one storage deployment: items, vectors and history plus its KV store, when it has one.
type backend struct {
	items   itemStore
	vectors vectorStore
	history historyStore
	pinger  healthuc.DBPinger
	kv      db.Store // nil on postgres
	migrate func(ctx context.Context) error
	close   func()
}

// app is the composition root shared by every command.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	backend *backend
	model   string

	budget  *embeddinguc.BudgetTracker
	pool    *ants.Pool
	search  *searchuc.Service
	suggest *suggestuc.Service
	catalog *catalog.Service
	batch   *batchuc.Service
	health  *healthuc.Service
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	histTTL := time.Duration(cfg.History.TTLHours) * time.Hour

	if cfg.Database.Driver == config.DriverPostgres {
		pool, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		vectors := postgres.NewVectors(pool)
		return &backend{
			items:   postgres.NewItems(pool),
			vectors: vectors,
			history: postgres.NewHistory(pool, cfg.History.MaxPerUser, histTTL),
			pinger:  pool,
			migrate: func(ctx context.Context) error {
				if err := postgres.Migrate(ctx, pool); err != nil {
					return fmt.Errorf("postgres schema: %w", err)
				}
				if err := vectors.EnsureIndex(ctx, cfg.Embedding.Model, cfg.Embedding.Dimensions); err != nil {
					return fmt.Errorf("vector index: %w", err)
				}
				return nil
			},
			close: pool.Close,
		}, nil
	}

	redisCfg := dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		TextSearch: true,
	}
	var (
		store *dbRedis.Store
		err   error
	)
	switch cfg.Database.Driver {
	case config.DriverValkey:
		store, err = dbValkey.NewStore(redisCfg)
	case config.DriverRedis:
		store, err = dbRedis.NewStore(redisCfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("text_search", store.SupportsTextSearch(ctx)),
	)

	items := itemrepo.New(store, cfg.Search.CandidateCap)
	vectors := vectorrepo.New(store, schema.VectorIndexOptions{
		Algorithm:      db.VectorHNSW,
		M:              cfg.Index.HNSWM,
		EFConstruction: cfg.Index.HNSWEFConstruct,
	})
	model, dims := cfg.Embedding.Model, cfg.Embedding.Dimensions
	return &backend{
		items:   items,
		vectors: vectors,
		history: historyrepo.New(store, cfg.History.MaxPerUser, histTTL),
		pinger:  store,
		kv:      store,
		migrate: func(ctx context.Context) error {
			if err := items.EnsureIndex(ctx); err != nil {
				return fmt.Errorf("item index: %w", err)
			}
			if err := vectors.EnsureIndex(ctx, model, dims); err != nil {
				return fmt.Errorf("vector index: %w", err)
			}
			return nil
		},
		close: store.Close,
	}, nil
}

// newApp wires storage, the embedder chain and the services.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	be, err := openBackend(ctx, &cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := be.migrate(ctx); err != nil {
		be.close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, backend: be, model: cfg.Embedding.Model}

	docEmbedder, queryEmbedder, healthChecker := a.buildEmbedders(ctx)

	truncator, err := embeddinguc.NewTruncator(cfg.Embedding.Tokenizer, cfg.Embedding.MaxInputTokens)
	if err != nil {
		logger.Warn("Tokenizer unavailable, truncating by length", zap.Error(err))
		truncator = embeddinguc.NewApproxTruncator(cfg.Embedding.MaxInputTokens)
	}

	a.catalog = catalog.New(be.items, be.vectors, docEmbedder, a.model, cfg.Embedding.Dimensions,
		catalog.WithTruncator(truncator),
		catalog.WithLogger(logger),
	)
	a.batch = batchuc.New(be.items, a.catalog).WithMaxBatchSize(cfg.Index.MaxBatchSize)

	strategy := searchuc.Strategy(cfg.Search.SemanticStrategy)
	searchCfg := searchuc.Config{
		BranchTimeout: time.Duration(cfg.Search.BranchTimeoutMs) * time.Millisecond,
		RRFK:          cfg.Search.RRFK,
		Weights: request.Weights{
			Lexical:  cfg.Search.Weights.Lexical,
			Semantic: cfg.Search.Weights.Semantic,
		},
		FetchFloor:       cfg.Search.FetchFloor,
		SimilarThreshold: cfg.Search.SimilarThreshold,
	}
	opts := []searchuc.Option{searchuc.WithLogger(logger)}
	var histReader suggestuc.HistoryReader
	if cfg.HistoryEnabled() {
		pool, err := ants.NewPool(cfg.History.PoolSize, ants.WithNonblocking(true))
		if err != nil {
			be.close()
			return nil, fmt.Errorf("create history pool: %w", err)
		}
		a.pool = pool
		opts = append(opts, searchuc.WithHistory(be.history, pool))
		histReader = be.history
	}
	a.search = searchuc.New(
		be.items,
		searchuc.NewLexicalRetriever(be.items, cfg.Search.CandidateCap),
		searchuc.NewSemanticRetriever(be.items, be.vectors, a.model, strategy, cfg.Search.CandidateCap),
		queryEmbedder,
		searchCfg,
		opts...,
	)
	a.suggest = suggestuc.New(be.items, histReader, suggestuc.Config{
		TrigramFloor: cfg.Suggest.TrigramFloor,
		CandidateCap: cfg.Search.CandidateCap,
	})

	var budget healthuc.BudgetReporter
	if a.budget != nil {
		budget = a.budget
	}
	a.health = healthuc.New(be.pinger, healthChecker, budget)

	return a, nil
}

// buildEmbedders assembles two decorator chains over one provider client:
// document: OpenAI -> Cached -> Instrumented(document) -> Instruction
// query:    OpenAI -> Instrumented(query) -> Instruction
// Without a configured provider every embed call fails, so semantic branches degrade.
func (a *app) buildEmbedders(ctx context.Context) (doc, query domain.Embedder, hc healthuc.EmbeddingChecker) {
	provName, provCfg, ok := a.cfg.ActiveProvider()
	if !ok {
		a.logger.Warn("No embedding provider configured, semantic search disabled")
		return disabledEmbedder{}, disabledEmbedder{}, nil
	}

	budgetCfg := provCfg.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		a.budget = embeddinguc.NewBudgetTracker(
			provName, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit,
			embeddinguc.ParseBudgetAction(budgetCfg.Action), a.logger,
			embeddinguc.WithDocumentShare(budgetCfg.DocumentShare),
		)
		if a.backend.kv != nil {
			a.budget.WithStore(ctx, budgetrepo.New(a.backend.kv, 48*time.Hour, 62*24*time.Hour))
		}
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budget embeddinguc.Budget
	if a.budget != nil {
		budget = a.budget
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      a.model,
		Dimensions: a.cfg.Embedding.Dimensions,
		Provider:   provName,
		Logger:     a.logger,
	})

	chain := func(path embeddinguc.Path, instruction string) domain.Embedder {
		var e domain.Embedder = base
		if path == embeddinguc.PathDocument && a.backend.kv != nil && a.cfg.CacheEnabled() {
			e = embcache.New(base, a.model, a.backend.kv, metrics.EmbeddingCacheTotal, a.logger)
		}
		e = embeddinguc.NewInstrumentedEmbedder(e, provName, a.model, path, budget, a.logger)
		if instruction != "" {
			return domain.NewInstructionEmbedder(e, instruction)
		}
		return e
	}

	a.logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", a.model),
		zap.Int("dimensions", a.cfg.Embedding.Dimensions),
	)
	return chain(embeddinguc.PathDocument, a.cfg.Embedding.DocumentInstruction),
		chain(embeddinguc.PathQuery, a.cfg.Embedding.QueryInstruction),
		base
}

// backfillService builds the embedding backfill over the app's stores.
func (a *app) backfillService(dryRun bool) *backfill.Service {
	return backfill.New(a.backend.items, a.backend.vectors, a.catalog, backfill.Config{
		Workers:   a.cfg.Backfill.Workers,
		BatchSize: a.cfg.Backfill.BatchSize,
		DryRun:    dryRun,
	}, a.logger)
}

// Close waits for pending history writes and releases storage.
func (a *app) Close() {
	if a.pool != nil {
		if err := a.pool.ReleaseTimeout(5 * time.Second); err != nil {
			a.logger.Warn("History pool did not drain", zap.Error(err))
		}
	}
	a.backend.close()
}

var errNoProvider = errors.New("no embedding provider configured")

// disabledEmbedder stands in when no provider is configured.
type disabledEmbedder struct{}

func (disabledEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, errNoProvider)
}
