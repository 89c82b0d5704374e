// Package router wires the alert API handlers onto a chi router.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsightx/alert-engine/internal/handlers"
	"github.com/finsightx/alert-engine/internal/realtime"
)

// Router wraps the chi mux and provides route configuration.
type Router struct {
	mux       chi.Router
	handlers  *handlers.Handlers
	hub       *realtime.Hub
	collector RequestRecorder
}

// Option configures a Router.
type Option func(*Router)

// WithHub serves GET /ws/alerts from hub.
func WithHub(hub *realtime.Hub) Option {
	return func(r *Router) { r.hub = hub }
}

// WithCollector records request counts into a service metrics collector.
func WithCollector(c RequestRecorder) Option {
	return func(r *Router) { r.collector = c }
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers, opts ...Option) *Router {
	r := &Router{
		mux:      chi.NewRouter(),
		handlers: h,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the configured HTTP handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.mux.Use(metricsMiddleware(r.collector))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.mux.Handle("/metrics", promhttp.Handler())

	if r.hub != nil {
		r.mux.Get("/ws/alerts", r.hub.ServeWS)
	}

	// The UI calls the unprefixed paths; other clients use /api/v1.
	r.mux.Group(r.mountAPI)
	r.mux.Route("/api/v1", r.mountAPI)
}

func (r *Router) mountAPI(api chi.Router) {
	h := r.handlers

	api.Route("/alerts", func(ar chi.Router) {
		ar.Get("/", h.ListAlerts)
		ar.Post("/", h.CreateAlert)
		ar.Get("/unread-count", h.UnreadCount)
		ar.Post("/acknowledge", h.AcknowledgeAlert)
		ar.Post("/resolve", h.ResolveAlert)
	})

	api.Route("/alert-rules", func(rr chi.Router) {
		rr.Get("/", h.ListRules)
		rr.Post("/", h.CreateRule)
		rr.Put("/", h.UpdateRule)
		rr.Delete("/", h.DisableRule)
		rr.Post("/enabled", h.SetRuleEnabled)

		rr.Get("/endpoints", h.ListEndpoints)
		rr.Post("/endpoints", h.CreateEndpoint)
		rr.Delete("/endpoints", h.DeleteEndpoint)
	})

	api.Put("/companies/alerts-enabled", h.SetCompanyAlertsEnabled)
	api.Put("/organizations/alerts-enabled", h.SetOrganizationAlertsEnabled)

	api.Get("/catalog", h.GetCatalog)
	api.Get("/stats", h.GetAlertStats)
	api.Get("/services/metrics", h.GetServiceMetrics)
}
