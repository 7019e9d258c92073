// Package app assembles the service from configuration: logger, tracing,
// metrics, the optional response cache and the lab facade. The serve, mcp
// and one-shot CLI commands all start from the same App.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/matiasleandrokruk/solidstate/internal/api"
	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lab"
	"github.com/matiasleandrokruk/solidstate/internal/domain/presets"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
	"github.com/matiasleandrokruk/solidstate/internal/infra/cache"
	"github.com/matiasleandrokruk/solidstate/internal/infra/config"
	"github.com/matiasleandrokruk/solidstate/internal/infra/eventbus"
	"github.com/matiasleandrokruk/solidstate/internal/infra/logger"
	"github.com/matiasleandrokruk/solidstate/internal/infra/metrics"
	"github.com/matiasleandrokruk/solidstate/internal/infra/sqlite"
	"github.com/matiasleandrokruk/solidstate/internal/infra/tracing"
	"github.com/matiasleandrokruk/solidstate/internal/version"
)

// App owns every long-lived handle. Close releases them in dependency order.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *lab.Service
	Presets *presets.Catalog
	Metrics *metrics.Metrics // nil when metrics are disabled

	tracing    *tracing.Provider
	bus        *eventbus.Bus
	db         *sql.DB
	writerDone <-chan struct{}
	stop       context.CancelFunc
}

// Options redirects process output; nil writers are discarded.
type Options struct {
	LogOutput   io.Writer
	TraceOutput io.Writer
}

// New builds an App from cfg.
func New(cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logOut := opts.LogOutput
	if logOut == nil {
		logOut = io.Discard
	}
	log, err := logger.New(logOut, logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}

	traceOut := opts.TraceOutput
	if traceOut == nil {
		traceOut = io.Discard
	}
	tp, err := tracing.New(cfg.TraceExporter, traceOut, version.Version)
	if err != nil {
		return nil, err
	}

	catalog, err := presets.Default()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: log, Presets: catalog, tracing: tp}
	if cfg.MetricsEnabled {
		a.Metrics = metrics.New()
	}

	svcOpts := lab.Options{
		CrystalLimits:  crystal.Limits{MaxAtoms: cfg.MaxAtoms, MaxGCandidates: cfg.MaxGCandidates},
		TBLimits:       tb.Limits{MaxKSamples: cfg.MaxKSamples},
		ComputeTimeout: cfg.RequestTimeout,
		Metrics:        a.Metrics,
		Tracer:         tp.Tracer(),
		Logger:         log,
	}

	if cfg.CachePath != "" {
		db, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			_ = tp.Shutdown(context.Background())
			return nil, fmt.Errorf("app: open cache: %w", err)
		}
		store := cache.NewStore(db)
		bus := eventbus.New()
		ctx, stop := context.WithCancel(context.Background())
		a.db, a.bus, a.stop = db, bus, stop
		a.writerDone = cache.NewWriter(store, log, a.Metrics).Start(ctx, bus)
		svcOpts.Cache = store
		svcOpts.Bus = bus
		log.Info("app.cache_enabled", "path", cfg.CachePath)
	}

	a.Service = lab.NewService(svcOpts)
	return a, nil
}

// Router returns the HTTP handler for the service.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Engine:         a.Service,
		Presets:        a.Presets,
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		JWTSecret:      []byte(a.Config.JWTSecret),
		RequestTimeout: a.Config.RequestTimeout,
	})
}

// Close drains the cache writer, closes the cache database and flushes
// pending spans. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.bus != nil {
		// Closing the bus lets the writer drain what is already queued.
		a.bus.Close()
		select {
		case <-a.writerDone:
		case <-ctx.Done():
			a.stop()
			<-a.writerDone
		}
		a.stop()
		a.bus = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		a.db = nil
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush traces: %w", err))
		}
		a.tracing = nil
	}
	return errors.Join(errs...)
}

// InstallTracing makes the app's provider the process-global one.
func (a *App) InstallTracing() {
	if a.tracing != nil {
		a.tracing.Install()
	}
}
