// Package lab is the engine facade: it runs the crystal, ewald and tb solvers
// behind one service that adds request coalescing, the response cache,
// metrics, tracing and logging. The solvers stay pure; all infrastructure
// handles live here.
package lab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/ewald"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
	"github.com/matiasleandrokruk/solidstate/internal/infra/cache"
	"github.com/matiasleandrokruk/solidstate/internal/infra/eventbus"
	"github.com/matiasleandrokruk/solidstate/internal/infra/metrics"
)

// Cache is the read side of the response cache.
type Cache interface {
	Get(ctx context.Context, op, hash string) ([]byte, bool, error)
}

// Options wires a Service. Every field is optional.
type Options struct {
	CrystalLimits crystal.Limits
	TBLimits      tb.Limits

	// ComputeTimeout bounds a coalesced computation. It runs detached from
	// the caller that started it; zero means no bound beyond the work caps.
	ComputeTimeout time.Duration

	// Cache enables read-through lookups; Bus receives cache.Entry events for
	// every fresh computation so a cache.Writer can persist them.
	Cache Cache
	Bus   eventbus.EventBus

	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// HealthStatus is the liveness payload.
type HealthStatus struct {
	OK bool `json:"ok"`
}

// Service is safe for concurrent use.
type Service struct {
	crystal *crystal.Builder
	ewald   *ewald.Solver
	tb      *tb.Solver

	cache   Cache
	bus     eventbus.EventBus
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	timeout time.Duration
	flight  singleflight.Group
}

// NewService builds a Service from opts.
func NewService(opts Options) *Service {
	s := &Service{
		crystal: crystal.NewBuilder(opts.CrystalLimits),
		ewald:   ewald.NewSolver(),
		tb:      tb.NewSolver(opts.TBLimits),
		cache:   opts.Cache,
		bus:     opts.Bus,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
		logger:  opts.Logger,
		timeout: opts.ComputeTimeout,
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// BuildCrystal runs the crystal builder.
func (s *Service) BuildCrystal(ctx context.Context, req crystal.Request) (*crystal.Response, error) {
	return execute(ctx, s, crystal.Op, call[crystal.Response]{
		validate: req.Validate,
		hash:     func() (string, error) { return crystal.Hash(req) },
		compute:  func(ctx context.Context) (*crystal.Response, error) { return s.crystal.Build(ctx, req) },
	})
}

// CalcEwald runs the Ewald solver.
func (s *Service) CalcEwald(ctx context.Context, req ewald.Request) (*ewald.Response, error) {
	return execute(ctx, s, ewald.Op, call[ewald.Response]{
		validate: req.Validate,
		hash:     func() (string, error) { return ewald.Hash(req) },
		compute:  func(ctx context.Context) (*ewald.Response, error) { return s.ewald.Solve(ctx, req) },
	})
}

// CalcTB runs the tight-binding solver.
func (s *Service) CalcTB(ctx context.Context, req tb.Request) (*tb.Response, error) {
	return execute(ctx, s, tb.Op, call[tb.Response]{
		validate: req.Validate,
		hash:     func() (string, error) { return tb.Hash(req) },
		compute:  func(ctx context.Context) (*tb.Response, error) { return s.tb.Solve(ctx, req) },
	})
}

// Health reports liveness. It performs no computation.
func (s *Service) Health(context.Context) HealthStatus {
	return HealthStatus{OK: true}
}

type call[T any] struct {
	validate func() error
	hash     func() (string, error)
	compute  func(ctx context.Context) (*T, error)
}

// flightResult is what one singleflight execution hands to every waiter.
type flightResult struct {
	resp any
	body []byte
}

func execute[T any](ctx context.Context, s *Service, op string, c call[T]) (resp *T, err error) {
	ctx, span := s.tracer.Start(ctx, "lab."+op, trace.WithAttributes(attribute.String("op", op)))
	start := time.Now()
	defer func() {
		status := statusOf(err)
		s.metrics.ObserveCompute(op, status, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
			s.logger.WarnContext(ctx, "lab.compute_failed", "op", op, "status", status, "error", err)
		}
		span.End()
	}()

	if err := c.validate(); err != nil {
		return nil, err
	}
	hash, err := c.hash()
	if err != nil {
		return nil, fmt.Errorf("lab: hash %s request: %w", op, err)
	}
	span.SetAttributes(attribute.String("request_hash", hash))

	if cached, ok := s.lookup(ctx, op, hash); ok {
		var out T
		if err := json.Unmarshal(cached, &out); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &out, nil
		}
		s.logger.ErrorContext(ctx, "lab.cache_corrupt", "op", op, "request_hash", hash)
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	ch := s.flight.DoChan(op+"/"+hash, func() (any, error) {
		cctx, cancel := s.detach(ctx)
		defer cancel()
		r, err := c.compute(cctx)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("lab: encode %s response: %w", op, err)
		}
		s.publish(op, hash, body)
		return flightResult{resp: r, body: body}, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	fr := res.Val.(flightResult)
	if !res.Shared {
		return fr.resp.(*T), nil
	}
	// Waiters get their own copy so no two callers alias one response.
	var out T
	if err := json.Unmarshal(fr.body, &out); err != nil {
		return nil, fmt.Errorf("lab: decode shared %s response: %w", op, err)
	}
	return &out, nil
}

// detach keeps ctx values (trace span, request id) but not its cancellation,
// so one caller leaving does not fail the others waiting on the same flight.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

func (s *Service) lookup(ctx context.Context, op, hash string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	body, ok, err := s.cache.Get(ctx, op, hash)
	switch {
	case err != nil:
		s.metrics.CacheEvent(op, "error")
		s.logger.ErrorContext(ctx, "lab.cache_get_failed", "op", op, "request_hash", hash, "error", err)
		return nil, false
	case ok:
		s.metrics.CacheEvent(op, "hit")
		return body, true
	default:
		s.metrics.CacheEvent(op, "miss")
		return nil, false
	}
}

func (s *Service) publish(op, hash string, body []byte) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(cache.TopicCompleted, cache.Entry{Op: op, RequestHash: hash, Body: body})
}

// statusOf maps an outcome onto the metrics status label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case calcerr.IsKind(err, calcerr.KindInvalidInput):
		return string(calcerr.KindInvalidInput)
	case calcerr.IsKind(err, calcerr.KindDegenerateLattice):
		return string(calcerr.KindDegenerateLattice)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
