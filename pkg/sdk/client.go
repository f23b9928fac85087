package promptdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/db"
	dbRedis "github.com/kailas-cloud/promptdex/internal/db/redis"
	dbValkey "github.com/kailas-cloud/promptdex/internal/db/valkey"
	"github.com/kailas-cloud/promptdex/internal/domain"
	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	domsuggest "github.com/kailas-cloud/promptdex/internal/domain/suggest"
	historyrepo "github.com/kailas-cloud/promptdex/internal/repository/history"
	itemrepo "github.com/kailas-cloud/promptdex/internal/repository/item"
	"github.com/kailas-cloud/promptdex/internal/repository/postgres"
	"github.com/kailas-cloud/promptdex/internal/repository/schema"
	vectorrepo "github.com/kailas-cloud/promptdex/internal/repository/vector"
	batchuc "github.com/kailas-cloud/promptdex/internal/usecase/batch"
	"github.com/kailas-cloud/promptdex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/promptdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/promptdex/internal/usecase/search"
	suggestuc "github.com/kailas-cloud/promptdex/internal/usecase/suggest"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultHistoryTTL       = 30 * 24 * time.Hour
	defaultModel            = "none"
	defaultHNSWM            = 32
	defaultHNSWEFConstruct  = 400
)

// Internal interfaces, swapped for fakes in tests.
type searchUseCase interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
	FindSimilar(ctx context.Context, req request.Similar) (result.Page, error)
	SimilarThreshold() float64
}

type suggestUseCase interface {
	Suggest(ctx context.Context, req request.Suggest) []domsuggest.Candidate
}

type catalogUseCase interface {
	Upsert(ctx context.Context, it *item.Item, embed bool) (bool, error)
	Delete(ctx context.Context, id string) error
}

type batchUseCase interface {
	Upsert(ctx context.Context, items []item.Item, embed bool) []dombatch.Result
	Delete(ctx context.Context, ids []string) []dombatch.Result
}

// Client is the promptdex SDK entry point. It is safe for concurrent use.
type Client struct {
	searchSvc  searchUseCase
	suggestSvc suggestUseCase
	catalogSvc catalogUseCase
	batchSvc   batchUseCase
	healthSvc  healthUseCase
	pinger     healthuc.DBPinger
	pool       *ants.Pool
	closeFn    func()
	obs        *observer
}

// storage is what one backend contributes to the services.
type storage struct {
	items interface {
		searchuc.ItemStore
		suggestuc.TitleStore
		catalog.ItemRepository
		batchuc.ItemWriter
	}
	vectors interface {
		searchuc.VectorStore
		catalog.VectorRepository
	}
	history interface {
		searchuc.HistoryRecorder
		suggestuc.HistoryReader
	}
	pinger healthuc.DBPinger
	close  func()
}

// New creates a Client, connects to the database and ensures the indexes exist.
// The provided context bounds the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.driver == "" {
		return nil, errors.New("promptdex: database required (use WithValkey, WithRedis or WithPostgres)")
	}
	if cfg.model == "" {
		cfg.model = defaultModel
		cfg.dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if cfg.hnswM <= 0 {
		cfg.hnswM = defaultHNSWM
	}
	if cfg.hnswEFConstruct <= 0 {
		cfg.hnswEFConstruct = defaultHNSWEFConstruct
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := wireClient(st, cfg, obs)
	if err != nil {
		st.close()
		return nil, err
	}
	return c, nil
}

func openStorage(ctx context.Context, cfg *clientConfig) (*storage, error) {
	if cfg.driver == driverPostgres {
		return openPostgres(ctx, cfg)
	}

	redisCfg := dbRedis.Config{
		Addrs:      cfg.addrs,
		Password:   cfg.password,
		TextSearch: true,
	}
	var (
		store *dbRedis.Store
		err   error
	)
	switch cfg.driver {
	case driverValkey:
		store, err = dbValkey.NewStore(redisCfg)
	case driverRedis:
		store, err = dbRedis.NewStore(redisCfg)
	default:
		return nil, fmt.Errorf("promptdex: unknown driver %q", cfg.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("promptdex: create %s store: %w", cfg.driver, err)
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("promptdex: database not ready: %w", err)
	}

	items := itemrepo.New(store, cfg.candidateCap)
	vectors := vectorrepo.New(store, schema.VectorIndexOptions{
		Algorithm:      db.VectorHNSW,
		M:              cfg.hnswM,
		EFConstruction: cfg.hnswEFConstruct,
	})
	if err := items.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("promptdex: item index: %w", err)
	}
	if err := vectors.EnsureIndex(ctx, cfg.model, cfg.dimensions); err != nil {
		store.Close()
		return nil, fmt.Errorf("promptdex: vector index: %w", err)
	}
	return &storage{
		items:   items,
		vectors: vectors,
		history: historyrepo.New(store, 0, defaultHistoryTTL),
		pinger:  store,
		close:   store.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg *clientConfig) (*storage, error) {
	pool, err := postgres.Open(ctx, postgres.Config{DSN: cfg.dsn})
	if err != nil {
		return nil, fmt.Errorf("promptdex: open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("promptdex: postgres schema: %w", err)
	}
	vectors := postgres.NewVectors(pool)
	if err := vectors.EnsureIndex(ctx, cfg.model, cfg.dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("promptdex: vector index: %w", err)
	}
	return &storage{
		items:   postgres.NewItems(pool),
		vectors: vectors,
		history: postgres.NewHistory(pool, 0, defaultHistoryTTL),
		pinger:  pool,
		close:   pool.Close,
	}, nil
}

func wireClient(st *storage, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	catalogSvc := catalog.New(st.items, st.vectors, emb, cfg.model, cfg.dimensions, catalog.WithLogger(logger))
	batchSvc := batchuc.New(st.items, catalogSvc)
	if cfg.maxBatchSize > 0 {
		batchSvc = batchSvc.WithMaxBatchSize(cfg.maxBatchSize)
	}

	c := &Client{
		catalogSvc: catalogSvc,
		batchSvc:   batchSvc,
		healthSvc:  healthuc.New(st.pinger, nil, nil),
		pinger:     st.pinger,
		closeFn:    st.close,
		obs:        obs,
	}

	searchOpts := []searchuc.Option{searchuc.WithLogger(logger)}
	var histReader suggestuc.HistoryReader
	if cfg.historyPool > 0 {
		pool, err := ants.NewPool(cfg.historyPool, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("promptdex: history pool: %w", err)
		}
		c.pool = pool
		searchOpts = append(searchOpts, searchuc.WithHistory(st.history, pool))
		histReader = st.history
	}

	c.searchSvc = searchuc.New(
		st.items,
		searchuc.NewLexicalRetriever(st.items, cfg.candidateCap),
		searchuc.NewSemanticRetriever(st.items, st.vectors, cfg.model, searchuc.StrategyNative, cfg.candidateCap),
		emb,
		searchuc.Config{Weights: request.Weights{Lexical: cfg.lexicalWeight, Semantic: cfg.semanticWeight}},
		searchOpts...,
	)
	c.suggestSvc = suggestuc.New(st.items, histReader, suggestuc.Config{CandidateCap: cfg.candidateCap})
	return c, nil
}

// Close waits briefly for pending history writes and releases all resources.
func (c *Client) Close() {
	if c.pool != nil {
		_ = c.pool.ReleaseTimeout(5 * time.Second)
	}
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
