package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/promptdex/internal/domain/access"
	logpkg "github.com/kailas-cloud/promptdex/internal/logger"
	"github.com/kailas-cloud/promptdex/internal/metrics"
)

// Principal headers set by the gateway in front of the engine.
const (
	HeaderUserID      = "X-User-ID"
	HeaderWorkspaceID = "X-Workspace-ID"
)

// NewRouter mounts the API routes behind the standard middleware stack.
func NewRouter(s *Server, apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(jsonRecoverer(s.logger))
	r.Use(metrics.Middleware("/metrics"))
	r.Use(BearerAuthMiddleware(apiKeys))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Post("/search", s.Search)
	r.Get("/suggest", s.Suggest)

	r.Route("/prompts", func(r chi.Router) {
		r.Post("/batch", s.BatchUpsert)
		r.Post("/batch/delete", s.BatchDelete)
		r.Put("/{id}", s.UpsertItem)
		r.Delete("/{id}", s.DeleteItem)
		r.Get("/{id}/similar", s.FindSimilar)
	})
	return r
}

// principalFromRequest reads the caller identity. Missing headers mean anonymous.
func principalFromRequest(r *http.Request) access.Principal {
	return access.Principal{
		UserID:      r.Header.Get(HeaderUserID),
		WorkspaceID: r.Header.Get(HeaderWorkspaceID),
	}
}

func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(ErrorResponse{
						Code:    ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			p := principalFromRequest(r)
			reqLogger := logger.With(zap.String("request_id", requestID)).
				With(logpkg.Principal(p.UserID, p.WorkspaceID)...)
			ctx := logpkg.WithContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
