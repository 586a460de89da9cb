package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gwi.com/support-copilot/internal/metrics"
)

func NewRouter(apiHandler *APIHandler, m *metrics.Metrics, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log, m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/", indexHandler)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)

		// Agent-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/status", apiHandler.StatusHandler)
			r.Post("/tone", apiHandler.ToneHandler)

			r.Post("/drafts", apiHandler.CreateDraftHandler)
			r.Get("/drafts", apiHandler.ListDraftsHandler)
			r.Delete("/drafts", apiHandler.ClearDraftsHandler)
			r.Get("/drafts/{draftID}", apiHandler.GetDraftHandler)
			r.Post("/drafts/{draftID}/feedback", apiHandler.DraftFeedbackHandler)

			r.Get("/stats", apiHandler.StatsHandler)
			r.Post("/knowledge/reindex", apiHandler.ReindexHandler)
		})
	})

	return r
}

func requestLogger(log *zap.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.ObserveRequest(r.Method, status)
				log.Info("Request served",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
