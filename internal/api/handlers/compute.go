// HTTP handlers for the three computations and health.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/matiasleandrokruk/solidstate/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/ewald"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lab"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
)

// Engine is the facade contract the handlers need. lab.Service satisfies it.
type Engine interface {
	BuildCrystal(ctx context.Context, req crystal.Request) (*crystal.Response, error)
	CalcEwald(ctx context.Context, req ewald.Request) (*ewald.Response, error)
	CalcTB(ctx context.Context, req tb.Request) (*tb.Response, error)
	Health(ctx context.Context) lab.HealthStatus
}

// ComputeHandler serves the compute endpoints.
type ComputeHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewComputeHandler creates a ComputeHandler. A nil logger uses slog.Default.
func NewComputeHandler(engine Engine, logger *slog.Logger) *ComputeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeHandler{engine: engine, logger: logger}
}

// BuildCrystal handles POST /api/crystal/build
func (h *ComputeHandler) BuildCrystal(w http.ResponseWriter, r *http.Request) {
	var req crystal.Request
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.BuildCrystal(r.Context(), req)
	h.respond(w, r, crystal.Op, resp, err)
}

// CalcEwald handles POST /api/diffraction/ewald
func (h *ComputeHandler) CalcEwald(w http.ResponseWriter, r *http.Request) {
	var req ewald.Request
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.CalcEwald(r.Context(), req)
	h.respond(w, r, ewald.Op, resp, err)
}

// CalcTB handles POST /api/tb/bands
func (h *ComputeHandler) CalcTB(w http.ResponseWriter, r *http.Request) {
	var req tb.Request
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.engine.CalcTB(r.Context(), req)
	h.respond(w, r, tb.Op, resp, err)
}

// Health handles GET|POST /api/health. Any body is ignored.
func (h *ComputeHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Health(r.Context()))
}

func (h *ComputeHandler) respond(w http.ResponseWriter, r *http.Request, op string, resp any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if !writeComputeError(w, err) {
		subject, _ := ctxkeys.String(r.Context(), ctxkeys.Subject)
		h.logger.ErrorContext(r.Context(), "api.compute_internal_error", "op", op, "subject", subject, "error", err)
	}
}
