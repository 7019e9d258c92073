// Package mcpserver exposes the computations as Model Context Protocol tools
// so an assistant can build crystals and solve band structures directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/ewald"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lab"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
	"github.com/matiasleandrokruk/solidstate/internal/version"
)

// Tool names.
const (
	ToolBuildCrystal = "build_crystal"
	ToolCalcEwald    = "calc_ewald"
	ToolCalcTB       = "calc_tb"
	ToolHealth       = "health"
)

// Engine is the facade contract the tools need. lab.Service satisfies it.
type Engine interface {
	BuildCrystal(ctx context.Context, req crystal.Request) (*crystal.Response, error)
	CalcEwald(ctx context.Context, req ewald.Request) (*ewald.Response, error)
	CalcTB(ctx context.Context, req tb.Request) (*tb.Response, error)
	Health(ctx context.Context) lab.HealthStatus
}

// args is the raw tool input. Arguments are re-decoded into the request
// types so the tools accept exactly what the HTTP endpoints accept.
type args = map[string]any

// New returns an MCP server with every tool registered.
func New(engine Engine, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "solidstate", Version: version.Version}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolBuildCrystal,
		Description: "Expand a lattice and basis into a supercell, enumerate reciprocal vectors within gMax and mesh (hkl) planes. Input is a crystal build request: {lattice:{kind,a,...}, basis:[{element,frac}], supercell?, reciprocal?:{gMax}, planes?}.",
	}, handler(logger, ToolBuildCrystal, engine.BuildCrystal))

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolCalcEwald,
		Description: "Find the reciprocal vectors on the Ewald sphere and project the diffracted beams onto a flat detector. Input: {crystal:{B,gPoints,gHKL}, beam:{lambda,kInDir,orientation?}, detector:{distance,normal,up,width,height}, intensity:{model,sigma?}}.",
	}, handler(logger, ToolCalcEwald, engine.CalcEwald))

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolCalcTB,
		Description: "Tight-binding bands along a k-path plus an optional Lorentzian density of states. Input: {model:{lattice:1d_chain|2d_square|2d_honeycomb, params}, kpath:{points:[{label,k}], nPerSegment?}, dos?:{enabled,nE,eta,eMin,eMax}}.",
	}, handler(logger, ToolCalcTB, engine.CalcTB))

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolHealth,
		Description: "Liveness check. Takes no input.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ args) (*mcp.CallToolResult, any, error) {
		return jsonResult(engine.Health(ctx))
	})

	return s
}

func handler[Req, Resp any](logger *slog.Logger, tool string, run func(context.Context, Req) (*Resp, error)) mcp.ToolHandlerFor[args, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in args) (*mcp.CallToolResult, any, error) {
		var req Req
		if err := decodeArgs(in, &req); err != nil {
			return nil, nil, err
		}
		resp, err := run(ctx, req)
		if err != nil {
			logger.DebugContext(ctx, "mcp.tool_failed", "tool", tool, "error", err)
			return nil, nil, err
		}
		return jsonResult(resp)
	}
}

func decodeArgs(in args, dst any) error {
	if in == nil {
		in = args{}
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("invalid_json: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid_input: %w", err)
	}
	return nil
}

// jsonResult returns the response as one JSON text block, byte-identical to
// the HTTP body.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil, nil
}

// Run serves s over stdio until ctx is done or the client disconnects.
func Run(ctx context.Context, s *mcp.Server) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
