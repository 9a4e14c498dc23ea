package handler

import (
	"net/http"

	"mediagate/internal/metrics"
	"mediagate/internal/middleware"
	"mediagate/internal/repository"
	"mediagate/internal/service"

	"github.com/go-chi/chi/v5"
)

// Deps are the collaborators wired into the HTTP surface.
type Deps struct {
	Limiter    *service.Limiter
	Metadata   *service.MetadataService
	Dispatcher *service.Dispatcher
	Providers  []service.Provider
	Metrics    *metrics.Registry
	Store      repository.Pinger // optional, for readiness
	Version    string

	TrustForwarded bool
	GlobalRPS      float64
	GlobalBurst    int

	// AdminAuth guards /admin when set; without it the admin routes are not mounted.
	AdminAuth func(http.Handler) http.Handler
}

// NewRouter builds the service's HTTP handler.
func NewRouter(d Deps) http.Handler {
	health := NewHealthHandler(d.Store, d.Version)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.ClientID(d.TrustForwarded),
		middleware.Logging,
		middleware.Recover,
	)

	r.Get("/health", health.Liveness)
	r.Get("/ready", health.Readiness)
	r.Get("/status", health.Status)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Throttle(d.GlobalRPS, d.GlobalBurst), middleware.CORS)
		r.Method(http.MethodGet, "/metainfo", NewMetaInfoHandler(d.Limiter, d.Metadata, d.Metrics))
		r.Method(http.MethodGet, "/download", NewDownloadHandler(d.Limiter, d.Metadata, d.Dispatcher, d.Providers, d.Metrics))
		r.With(middleware.RequestSizeLimit(middleware.MaxResolveBody)).
			Handle("/resolve", NewResolveHandler(d.Limiter, d.Dispatcher, d.Providers, d.Metrics))
	})

	if d.AdminAuth != nil {
		admin := NewAdminHandler(d.Limiter)
		r.Route("/admin", func(r chi.Router) {
			r.Use(d.AdminAuth)
			r.Get("/clients/{id}", admin.Get)
			r.Delete("/clients/{id}", admin.Reset)
		})
	}
	return r
}
