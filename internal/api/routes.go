// Route registration and go-chi router setup.
// Public routes (/api/health, /version, /metrics) vs optionally protected compute and preset routes.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/solidstate/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/solidstate/internal/api/middleware"
	"github.com/matiasleandrokruk/solidstate/internal/domain/presets"
	"github.com/matiasleandrokruk/solidstate/internal/infra/metrics"
)

// Deps is everything the router needs. Engine and Presets are required;
// a nil Metrics disables /metrics, an empty JWTSecret disables auth and a
// zero RequestTimeout disables the per-request deadline.
type Deps struct {
	Engine         handlers.Engine
	Presets        *presets.Catalog
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	JWTSecret      []byte
	RequestTimeout time.Duration
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(d Deps) *chi.Mux {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog(d.Logger, d.Metrics))
	r.Use(middleware.Recoverer)

	compute := handlers.NewComputeHandler(d.Engine, d.Logger)
	presetHandler := handlers.NewPresetHandler(d.Presets)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check, also posted by the client with an empty {} body
	r.Get("/api/health", compute.Health)
	r.Post("/api/health", compute.Health)
	r.Get("/version", handlers.Version)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// ===== API ROUTES (JWT required when a secret is configured) =====
	r.Group(func(r chi.Router) {
		if len(d.JWTSecret) > 0 {
			r.Use(apmiddleware.Auth(d.JWTSecret))
		}
		if d.RequestTimeout > 0 {
			r.Use(middleware.Timeout(d.RequestTimeout))
		}

		r.Post("/api/crystal/build", compute.BuildCrystal)     // POST /api/crystal/build
		r.Post("/api/diffraction/ewald", compute.CalcEwald)    // POST /api/diffraction/ewald
		r.Post("/api/tb/bands", compute.CalcTB)                // POST /api/tb/bands
		r.Get("/api/presets/lattices", presetHandler.Lattices) // GET /api/presets/lattices
		r.Get("/api/presets/kpaths", presetHandler.KPaths)     // GET /api/presets/kpaths
	})

	return r
}
