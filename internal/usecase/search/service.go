package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	"github.com/kailas-cloud/promptdex/internal/domain/history"
	"github.com/kailas-cloud/promptdex/internal/domain/search/mode"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/logger"
	"github.com/kailas-cloud/promptdex/internal/metrics"
)

// Defaults for Config.
const (
	DefaultBranchTimeout = 3 * time.Second
	DefaultFetchFloor    = 50
	historyWriteTimeout  = 2 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	BranchTimeout    time.Duration
	RRFK             int
	Weights          request.Weights
	FetchFloor       int
	SimilarThreshold float64
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BranchTimeout <= 0 {
		c.BranchTimeout = DefaultBranchTimeout
	}
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	if c.Weights.Lexical == 0 && c.Weights.Semantic == 0 {
		c.Weights = request.Weights{Lexical: 1, Semantic: 1}
	}
	if c.FetchFloor <= 0 {
		c.FetchFloor = DefaultFetchFloor
	}
	if c.SimilarThreshold <= 0 {
		c.SimilarThreshold = request.DefaultSimilarThreshold
	}
}

// Service orchestrates hybrid search: validate, fan out, fuse, paginate, log history.
// It holds no cross-request mutable state.
type Service struct {
	items    ItemStore
	lexical  *LexicalRetriever
	semantic *SemanticRetriever
	embed    Embedder
	cfg      Config

	history HistoryRecorder
	pool    Submitter
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithHistory enables fire-and-forget history logging through pool.
func WithHistory(rec HistoryRecorder, pool Submitter) Option {
	return func(s *Service) {
		s.history = rec
		s.pool = pool
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a search service.
func New(
	items ItemStore, lexical *LexicalRetriever, semantic *SemanticRetriever, embed Embedder,
	cfg Config, opts ...Option,
) *Service {
	cfg.ApplyDefaults()
	s := &Service{
		items:    items,
		lexical:  lexical,
		semantic: semantic,
		embed:    embed,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SimilarThreshold returns the configured FindSimilar default.
func (s *Service) SimilarThreshold() float64 { return s.cfg.SimilarThreshold }

// branch is one retriever's result-or-error.
type branch struct {
	source   mode.Source
	hits     []result.Hit
	err      error
	duration time.Duration
}

// Search runs one request through the pipeline.
func (s *Service) Search(ctx context.Context, req request.Request) (result.Page, error) {
	start := s.now()
	m := req.Mode()
	ctx = logger.Annotate(ctx, zap.String("search_mode", string(m)))

	if err := authorize(m, req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		return result.Page{}, err
	}

	branches := s.fanOut(ctx, &req)

	var ok []sourceList
	var failed []branch
	for _, b := range branches {
		status := "ok"
		if b.err != nil {
			status = "error"
			failed = append(failed, b)
		} else {
			ok = append(ok, sourceList{source: b.source, hits: b.hits})
		}
		metrics.SearchBranchDuration.WithLabelValues(string(b.source), status).Observe(b.duration.Seconds())
	}

	if err := ctx.Err(); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		return result.Page{}, fmt.Errorf("search: %w", err)
	}
	if len(ok) == 0 {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		if len(failed) == 1 {
			return result.Page{}, failed[0].err
		}
		return result.Page{}, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, errors.Join(failed[0].err, failed[1].err))
	}

	degraded := len(failed) > 0
	log := logger.FromContext(ctx)
	for _, b := range failed {
		log.Warn("Search branch failed, degrading", zap.String("source", string(b.source)), zap.Error(b.err))
		metrics.SearchDegradedTotal.WithLabelValues(string(b.source)).Inc()
	}

	var fusedList []fused
	if len(ok) == 1 {
		fusedList = passThrough(ok[0])
	} else {
		fusedList = fuseRRF(ok, req.Weights(s.cfg.Weights), s.cfg.RRFK)
	}

	ranked, err := s.load(ctx, fusedList, req.Scope())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		return result.Page{}, err
	}
	sortRanked(ranked)

	page := result.Page{
		Results:  s.paginate(ranked, &req),
		Total:    len(ranked),
		Query:    req.Query(),
		Mode:     m,
		Degraded: degraded,
	}
	for _, l := range ok {
		page.Sources = append(page.Sources, l.source)
	}
	page.Duration = s.now().Sub(start)

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(m), outcome).Inc()

	s.logHistory(ctx, &req, page.Total)
	return page, nil
}

// authorize rejects an anonymous caller unless it restricted itself to public items.
// Public-only scopes need no principal in any mode.
func authorize(m mode.Mode, req request.Request) error {
	scope := req.Scope()
	if scope.Principal.IsAnonymous() && !scope.IncludePublic {
		return fmt.Errorf("%w: anonymous %s search must include public items only", domain.ErrUnauthenticated, m)
	}
	return nil
}

// fanOut runs every source of the mode concurrently, each under its own timeout.
// A branch failure never cancels its sibling.
func (s *Service) fanOut(ctx context.Context, req *request.Request) []branch {
	sources := req.Mode().Sources()
	out := make([]branch, len(sources))
	fetch := req.FetchLimit(s.cfg.FetchFloor)
	qv := newQueryVector(s.embed, req.Query())

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, s.cfg.BranchTimeout)
			defer cancel()
			t := time.Now()
			hits, err := s.runBranch(bctx, src, req, fetch, qv)
			out[i] = branch{source: src, hits: hits, err: err, duration: time.Since(t)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) runBranch(
	ctx context.Context, src mode.Source, req *request.Request, fetch int, qv *queryVector,
) ([]result.Hit, error) {
	f, scope := req.Filters(), req.Scope()
	if src == mode.SourceLexical {
		if req.Mode() == mode.Keyword {
			return s.lexical.Keyword(ctx, req.Query(), f, scope, fetch)
		}
		return s.lexical.FullText(ctx, req.Query(), f, scope, fetch)
	}

	vec, err := qv.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.semantic.Search(ctx, vec, f, scope, fetch)
}

// load attaches items to fused entries, dropping deleted items and anything the scope cannot see.
func (s *Service) load(ctx context.Context, fs []fused, scope access.Scope) ([]rankedItem, error) {
	if len(fs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.itemID
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	byID := make(map[string]int, len(items))
	for i := range items {
		byID[items[i].ID()] = i
	}

	out := make([]rankedItem, 0, len(fs))
	for _, f := range fs {
		i, ok := byID[f.itemID]
		if !ok || !scope.Allows(&items[i]) {
			continue
		}
		out = append(out, rankedItem{fused: f, item: items[i]})
	}
	return out, nil
}

// paginate slices the sorted list and computes highlights for the page only.
func (s *Service) paginate(ranked []rankedItem, req *request.Request) []result.Scored {
	from := min(req.Offset(), len(ranked))
	to := min(from+req.Limit(), len(ranked))
	hl := newHighlighter(req.Query())

	out := make([]result.Scored, 0, to-from)
	for i := from; i < to; i++ {
		r := ranked[i]
		sc := result.Scored{
			ItemID:        r.itemID,
			Rank:          i + 1,
			CombinedScore: r.combined,
			Breakdown:     r.breakdown,
			Item:          r.item,
		}
		if r.breakdown.Lexical != nil {
			sc.Highlight = hl.For(&r.item)
		}
		out = append(out, sc)
	}
	return out
}

// logHistory records the search on the detached pool. It never blocks and never fails the request.
func (s *Service) logHistory(ctx context.Context, req *request.Request, total int) {
	p := req.Scope().Principal
	if s.history == nil || s.pool == nil || p.IsAnonymous() {
		return
	}
	entry := history.NewEntry(p.UserID, req.Query(), string(req.Mode()), total, req.Filters(), s.now())
	log := logger.FromContext(ctx)

	err := s.pool.Submit(func() {
		hctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := s.history.Record(hctx, entry); err != nil {
			metrics.HistoryWriteFailuresTotal.Inc()
			log.Warn("Search history write failed", zap.String("user_id", entry.UserID), zap.Error(err))
		}
	})
	if err != nil {
		metrics.HistoryWriteFailuresTotal.Inc()
		log.Warn("Search history dropped", zap.Error(err))
	}
}
