// Package rest assembles the chi router for the HTTP surface.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"analyst-backend/interfaces/http/rest/handlers"
	"analyst-backend/interfaces/http/rest/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Agents      *handlers.AgentHandler
	Executions  *handlers.ExecutionHandler
	DataSources *handlers.DataSourceHandler
	Memos       *handlers.MemoHandler
	Health      *handlers.HealthHandler
	Metrics     http.Handler
}

// NewRouter builds the full route tree. The health probe and metrics scrape
// sit outside the identity middleware; everything under /api requires a
// caller identity.
func NewRouter(h Handlers, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing("analyst-backend"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.OwnerHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Check)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", h.Agents.Register)
			r.Get("/", h.Agents.List)
			r.Route("/{agentId}", func(r chi.Router) {
				r.Get("/", h.Agents.Get)
				r.Put("/", h.Agents.Update)
				r.Delete("/", h.Agents.Delete)
				r.Post("/enable", h.Agents.Enable)
				r.Post("/disable", h.Agents.Disable)
				r.Post("/pause", h.Agents.Pause)
				r.Post("/reset", h.Agents.Reset)
				r.Post("/trigger", h.Agents.Trigger)
				r.Get("/executions", h.Agents.ListExecutions)
			})
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/{executionId}", h.Executions.Get)
			r.Post("/{executionId}/cancel", h.Executions.Cancel)
		})

		r.Route("/datasources", func(r chi.Router) {
			r.Post("/", h.DataSources.Ingest)
			r.Get("/", h.DataSources.List)
			r.Route("/{sourceId}", func(r chi.Router) {
				r.Get("/", h.DataSources.Get)
				r.Delete("/", h.DataSources.Delete)
				r.Post("/select", h.DataSources.Select)
				r.Post("/deselect", h.DataSources.Deselect)
				r.Post("/archive", h.DataSources.Archive)
			})
		})

		r.Route("/memos", func(r chi.Router) {
			r.Post("/generate", h.Memos.Generate)
			r.Post("/curate", h.Memos.Curate)
			r.Get("/", h.Memos.List)
			r.Route("/{memoId}", func(r chi.Router) {
				r.Get("/", h.Memos.Get)
				r.Delete("/", h.Memos.Delete)
				r.Post("/review", h.Memos.StartReview)
				r.Post("/approve", h.Memos.Approve)
				r.Post("/reject", h.Memos.Reject)
			})
		})
	})

	return r
}
