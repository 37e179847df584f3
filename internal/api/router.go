package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/ds-monitor/engine/internal/api/handlers"
	mw "github.com/ds-monitor/engine/internal/api/middleware"
)

type Dependencies struct {
	HealthHandler    *handlers.HealthHandler
	ProjectsHandler  *handlers.ProjectsHandler
	ForecastHandler  *handlers.ForecastHandler
	DashboardHandler *handlers.DashboardHandler
	UpdatesHandler   *handlers.UpdatesHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)

	r.Route("/api/v1", func(api chi.Router) {
		// Projects
		api.Route("/projects", func(pr chi.Router) {
			pr.Get("/", dep.ProjectsHandler.List)
			pr.Post("/", dep.ProjectsHandler.Create)
			pr.Get("/completed", dep.ProjectsHandler.ListCompleted)
			pr.Get("/{id}", dep.ProjectsHandler.Get)
			pr.Patch("/{id}", dep.ProjectsHandler.Patch)
			pr.Delete("/{id}", dep.ProjectsHandler.Delete)
			pr.Get("/{id}/updates", dep.ProjectsHandler.ListUpdates)
			pr.Post("/{id}/updates", dep.ProjectsHandler.AddUpdate)
		})

		// Project updates
		api.Route("/updates", func(ur chi.Router) {
			ur.Get("/log", dep.UpdatesHandler.Log)
			ur.Put("/{id}/toggle", dep.UpdatesHandler.Toggle)
			ur.Delete("/{id}", dep.UpdatesHandler.Delete)
		})

		// Forecast entries
		api.Route("/forecast", func(fr chi.Router) {
			fr.Get("/", dep.ForecastHandler.List)
			fr.Post("/", dep.ForecastHandler.Create)
			fr.Put("/entry/{id}/complete", dep.ForecastHandler.ToggleComplete)
			fr.Delete("/entry/{id}", dep.ForecastHandler.Delete)
		})

		// Dashboard
		api.Get("/dashboard", dep.DashboardHandler.Get)
		api.Post("/dashboard/report", dep.DashboardHandler.Report)
	})

	return r
}
