package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain"
	"github.com/kailas-cloud/promptdex/internal/domain/access"
	dombatch "github.com/kailas-cloud/promptdex/internal/domain/batch"
	"github.com/kailas-cloud/promptdex/internal/domain/item"
	"github.com/kailas-cloud/promptdex/internal/domain/search/filter"
	"github.com/kailas-cloud/promptdex/internal/domain/search/request"
	"github.com/kailas-cloud/promptdex/internal/domain/search/result"
	"github.com/kailas-cloud/promptdex/internal/domain/suggest"
	"github.com/kailas-cloud/promptdex/internal/logger"
	healthuc "github.com/kailas-cloud/promptdex/internal/usecase/health"
)

// Searcher runs search and find-similar queries.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Page, error)
	FindSimilar(ctx context.Context, req request.Similar) (result.Page, error)
	SimilarThreshold() float64
}

// Suggester ranks autocomplete candidates.
type Suggester interface {
	Suggest(ctx context.Context, req request.Suggest) []suggest.Candidate
}

// Cataloger keeps single items in sync.
type Cataloger interface {
	Upsert(ctx context.Context, it *item.Item, embed bool) (bool, error)
	Delete(ctx context.Context, id string) error
}

// BatchIndexer syncs items in bulk.
type BatchIndexer interface {
	Upsert(ctx context.Context, items []item.Item, embed bool) []dombatch.Result
	Delete(ctx context.Context, ids []string) []dombatch.Result
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search API.
type Server struct {
	search        Searcher
	suggest       Suggester
	catalog       Cataloger
	batch         BatchIndexer
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	searcher Searcher,
	suggester Suggester,
	catalog Cataloger,
	batch BatchIndexer,
	health HealthReporter,
	log *zap.Logger,
) *Server {
	s := &Server{
		search:  searcher,
		suggest: suggester,
		catalog: catalog,
		batch:   batch,
		health:  health,
		logger:  log,
	}
	// SearchUnavailable joins the per-source errors, so it must match before them.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeInvalidRequest),
		sentinelHandler(domain.ErrUnauthenticated, http.StatusUnauthorized, ErrorResponseCodeUnauthenticated),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrSearchUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeSearchUnavailable),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusTooManyRequests, ErrorResponseCodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrIndexUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeIndexUnavailable),
		sentinelHandler(domain.ErrVectorStoreUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeVectorStoreUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(context.DeadlineExceeded,
			http.StatusServiceUnavailable, ErrorResponseCodeSearchUnavailable),
	}
	return s
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := searchRequestFromDTO(&body, principalFromRequest(r))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	page, err := s.search.Search(ctx, req)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, pageToDTO(&page))
}

// Suggest handles GET /suggest.
func (s *Server) Suggest(w http.ResponseWriter, r *http.Request) {
	var params SuggestParams
	if err := bindSuggestParams(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}

	req, err := request.NewSuggest(request.SuggestParams{
		Prefix:         params.Q,
		Limit:          derefInt(params.Limit),
		IncludeHistory: derefBool(params.IncludeHistory, true),
		Scope:          access.NewScope(principalFromRequest(r), derefBool(params.IncludePublic, true)),
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	cs := s.suggest.Suggest(r.Context(), req)
	out := SuggestResponse{Suggestions: make([]Suggestion, len(cs))}
	for i, c := range cs {
		out.Suggestions[i] = Suggestion{Text: c.Text, Source: string(c.Source), Similarity: result.Round3(c.Similarity)}
	}
	writeJSON(w, http.StatusOK, out)
}

// FindSimilar handles GET /prompts/{id}/similar.
func (s *Server) FindSimilar(w http.ResponseWriter, r *http.Request) {
	var params SimilarParams
	if err := bindSimilarParams(r, &params); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}

	req, err := request.NewSimilar(request.SimilarParams{
		ItemID:    chi.URLParam(r, "id"),
		Threshold: params.Threshold,
		Limit:     derefInt(params.Limit),
		Scope:     access.NewScope(principalFromRequest(r), derefBool(params.IncludePublic, true)),
	}, s.search.SimilarThreshold())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	page, err := s.search.FindSimilar(r.Context(), req)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(&page))
}

// UpsertItem handles PUT /prompts/{id}.
func (s *Server) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var body UpsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	var embed *bool
	if err := runtime.BindQueryParameter("form", true, false, "embed", r.URL.Query(), &embed); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}

	it, err := itemFromDTO(chi.URLParam(r, "id"), &body)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	created, err := s.catalog.Upsert(ctx, &it, derefBool(embed, true))
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, UpsertItemResponse{ID: it.ID(), Created: created})
}

// DeleteItem handles DELETE /prompts/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchUpsert handles POST /prompts/batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var body BatchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	var embed *bool
	if err := runtime.BindQueryParameter("form", true, false, "embed", r.URL.Query(), &embed); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		return
	}

	// invalid entries fail individually; the rest go through in one batch
	results := make([]BatchResultItem, len(body.Items))
	valid := make([]item.Item, 0, len(body.Items))
	validIdx := make([]int, 0, len(body.Items))
	for i := range body.Items {
		it, err := itemFromDTO(body.Items[i].ID, &body.Items[i].UpsertItemRequest)
		if err != nil {
			results[i] = batchErrorToDTO(body.Items[i].ID, err)
			continue
		}
		valid = append(valid, it)
		validIdx = append(validIdx, i)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	if len(valid) > 0 {
		for j, res := range s.batch.Upsert(ctx, valid, derefBool(embed, true)) {
			results[validIdx[j]] = batchResultToDTO(res)
		}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, batchResponse(results))
}

// BatchDelete handles POST /prompts/batch/delete.
func (s *Server) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var body BatchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	outcomes := s.batch.Delete(r.Context(), body.IDs)
	results := make([]BatchResultItem, len(outcomes))
	for i, res := range outcomes {
		results[i] = batchResultToDTO(res)
	}
	writeJSON(w, http.StatusOK, batchResponse(results))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	resp := HealthResponse{Status: string(report.Status), Checks: checks}
	if report.Budget != nil {
		resp.Budget = report.Budget
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation errors keep their field and reason.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnauthenticated,
		domain.ErrNotFound,
		domain.ErrSearchUnavailable,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrIndexUnavailable,
		domain.ErrVectorStoreUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "search timed out"
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

// errorCode maps an error to its code without writing a response.
func errorCode(err error) ErrorResponseCode {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrorResponseCodeInvalidRequest
	case errors.Is(err, domain.ErrNotFound):
		return ErrorResponseCodeNotFound
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return ErrorResponseCodeEmbeddingQuotaExceeded
	case errors.Is(err, domain.ErrIndexUnavailable):
		return ErrorResponseCodeIndexUnavailable
	case errors.Is(err, domain.ErrVectorStoreUnavailable):
		return ErrorResponseCodeVectorStoreUnavailable
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return ErrorResponseCodeEmbeddingProviderError
	}
	return ErrorResponseCodeInternalError
}

func searchRequestFromDTO(body *SearchRequest, p access.Principal) (request.Request, error) {
	var fp filter.Params
	if f := body.Filters; f != nil {
		fp = filter.Params{
			Tags:          f.Tags,
			IsPublic:      filter.FromPtr(f.IsPublic),
			CreatedAfter:  filter.FromPtr(f.CreatedAfter),
			CreatedBefore: filter.FromPtr(f.CreatedBefore),
			WorkspaceID:   filter.FromPtr(f.WorkspaceID),
			MinUsage:      filter.FromPtr(f.MinUsage),
			AuthorID:      filter.FromPtr(f.AuthorID),
		}
	}
	filters, err := filter.New(fp)
	if err != nil {
		return request.Request{}, domain.Invalid("filters", err.Error())
	}

	var weights *request.Weights
	if body.Weights != nil {
		weights = &request.Weights{Lexical: body.Weights.Lexical, Semantic: body.Weights.Semantic}
	}

	return request.New(request.Params{
		Query:   body.Query,
		Mode:    body.Mode,
		Filters: filters,
		Limit:   derefInt(body.Limit),
		Offset:  derefInt(body.Offset),
		Scope:   access.NewScope(p, derefBool(body.IncludePublic, true)),
		Weights: weights,
	})
}

func pageToDTO(p *result.Page) SearchResponse {
	out := SearchResponse{
		Results:    make([]SearchResultItem, len(p.Results)),
		Total:      p.Total,
		Query:      p.Query,
		Mode:       string(p.Mode),
		DurationMs: p.Duration.Milliseconds(),
		Degraded:   p.Degraded,
		Sources:    make([]string, len(p.Sources)),
	}
	for i := range p.Results {
		r := &p.Results[i]
		out.Results[i] = SearchResultItem{
			ItemID:        r.ItemID,
			Rank:          r.Rank,
			CombinedScore: r.CombinedScore,
			ScoreBreakdown: ScoreBreakdown{
				Lexical:  r.Breakdown.Lexical,
				Semantic: r.Breakdown.Semantic,
				Combined: r.Breakdown.Combined,
			},
			Highlight: r.Highlight,
			Item:      itemToDTO(&r.Item),
		}
	}
	for i, src := range p.Sources {
		out.Sources[i] = string(src)
	}
	return out
}

func itemToDTO(it *item.Item) ItemSummary {
	tags := it.Tags()
	if tags == nil {
		tags = []string{}
	}
	return ItemSummary{
		ID:          it.ID(),
		Title:       it.Title(),
		Body:        it.Body(),
		Tags:        tags,
		OwnerID:     it.OwnerID(),
		WorkspaceID: it.WorkspaceID(),
		IsPublic:    it.IsPublic(),
		UsageCount:  it.UsageCount(),
		CreatedAt:   it.CreatedAt(),
	}
}

func itemFromDTO(id string, body *UpsertItemRequest) (item.Item, error) {
	var created time.Time
	if body.CreatedAt != nil {
		created = *body.CreatedAt
	}
	it, err := item.New(item.Attrs{
		ID:          id,
		Title:       body.Title,
		Body:        body.Body,
		Tags:        body.Tags,
		OwnerID:     body.OwnerID,
		WorkspaceID: body.WorkspaceID,
		IsPublic:    body.IsPublic,
		UsageCount:  body.UsageCount,
		CreatedAt:   created,
	})
	if err != nil {
		return item.Item{}, domain.Invalid("item", err.Error())
	}
	return it, nil
}

func batchResultToDTO(r dombatch.Result) BatchResultItem {
	if r.Err() != nil {
		return batchErrorToDTO(r.ID(), r.Err())
	}
	return BatchResultItem{ID: r.ID(), Status: string(r.Status())}
}

func batchErrorToDTO(id string, err error) BatchResultItem {
	return BatchResultItem{
		ID:     id,
		Status: string(dombatch.StatusError),
		Error:  &BatchResultError{Code: errorCode(err), Message: safeDomainMessage(err)},
	}
}

func batchResponse(items []BatchResultItem) BatchResponse {
	resp := BatchResponse{Items: items}
	for _, it := range items {
		if it.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	return resp
}

func bindSuggestParams(r *http.Request, p *SuggestParams) error {
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "q", q, &p.Q); err != nil {
		return err
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return err
	}
	if err := runtime.BindQueryParameter("form", true, false, "include_history", q, &p.IncludeHistory); err != nil {
		return err
	}
	return runtime.BindQueryParameter("form", true, false, "include_public", q, &p.IncludePublic)
}

func bindSimilarParams(r *http.Request, p *SimilarParams) error {
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "threshold", q, &p.Threshold); err != nil {
		return err
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return err
	}
	return runtime.BindQueryParameter("form", true, false, "include_public", q, &p.IncludePublic)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
