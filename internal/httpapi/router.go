// Package httpapi mounts the JSON API consumed by the audit dashboard.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rpattn/auditdesk/internal/auditing"
	"github.com/rpattn/auditdesk/internal/export"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/ingestion"
	"github.com/rpattn/auditdesk/internal/mapview"
	"github.com/rpattn/auditdesk/internal/metrics"
	"github.com/rpattn/auditdesk/internal/middleware"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository"
	"github.com/rpattn/auditdesk/internal/users"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the router needs. Metrics and DB may be nil.
type Deps struct {
	Store          repository.Store
	Questionnaires *questionnaire.Service
	Auditing       *auditing.Service
	MapView        *mapview.Service
	Export         *export.Service
	Ingestion      *ingestion.Service
	Users          *users.Service

	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	DB             Pinger
	AllowedOrigins []string
	MaxUploadBytes int64
}

type api struct {
	Deps
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &api{Deps: deps}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition"},
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/healthz", a.health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(deps.Users))
		r.Use(middleware.DataLoaderMiddleware(deps.Store.Audits()))

		r.Post("/auth/login", a.login)
		r.Post("/auth/logout", a.logout)
		r.Get("/me", a.me)

		r.Route("/questionnaires", func(r chi.Router) {
			r.Get("/", a.listVersions)
			r.Post("/", a.createVersion)
			r.Get("/published", a.publishedTree)
			r.Get("/{id}", a.versionTree)
			r.Post("/{id}/publish", a.publishVersion)
			r.Post("/{id}/sections", a.addSection)
		})
		r.Route("/sections/{id}", func(r chi.Router) {
			r.Put("/", a.editSection)
			r.Delete("/", a.deleteSection)
			r.Post("/move", a.moveSection)
			r.Post("/questions", a.addQuestion)
		})
		r.Put("/questions/{id}", a.editQuestion)
		r.Post("/questions/{id}/retire", a.retireQuestion)

		r.Route("/facilities", func(r chi.Router) {
			r.Get("/", a.listFacilities)
			r.Post("/", a.createFacility)
			r.Get("/{id}", a.facilityDetail)
			r.Put("/{id}", a.saveFacility)
			r.Delete("/{id}", a.deleteFacility)
			r.Get("/{id}/change-logs", a.changeLogs)
		})
		r.Get("/map/markers", a.markers)

		r.Route("/config", func(r chi.Router) {
			r.Get("/tooltips", a.listTooltips)
			r.Post("/tooltips", a.saveTooltip)
			r.Put("/tooltips/{id}", a.saveTooltip)
			r.Delete("/tooltips/{id}", a.deleteTooltip)
			r.Get("/filters", a.listFilters)
			r.Post("/filters", a.saveFilter)
			r.Put("/filters/{id}", a.saveFilter)
			r.Delete("/filters/{id}", a.deleteFilter)
		})

		r.Get("/export/facility-template", a.facilityTemplate)
		r.Get("/export/audit-template", a.auditTemplate)
		r.Get("/export/facilities", a.exportFacilities)
		r.Method(http.MethodPost, "/import/facilities", ingestion.NewHTTPHandler(deps.Ingestion, deps.MaxUploadBytes))
		r.Post("/import/error-report", a.errorReport)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", a.listUsers)
			r.Post("/", a.createUser)
			r.Post("/bulk", a.bulkUsers)
			r.Put("/{id}", a.updateUser)
			r.Delete("/{id}", a.deleteUser)
		})
	})

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.Logger.Warn("health check failed", zap.Error(err))
			render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
