// Package tb computes tight-binding band structures along k-space paths and
// the Lorentzian-broadened density of states for a small set of lattice models.
package tb

import (
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
)

// Op names the operation in errors and request hashes.
const Op = "tb"

// Request defaults.
const (
	DefaultNPerSegment = 200
	DefaultNE          = 1200
	DefaultEta         = 0.03

	// dosMarginEtas widens the default energy window by this many eta on each side.
	dosMarginEtas = 5
)

// Lattice names a tight-binding topology.
type Lattice string

const (
	Chain1D     Lattice = "1d_chain"
	Square2D    Lattice = "2d_square"
	Honeycomb2D Lattice = "2d_honeycomb"
)

// Params are the model parameters. Missing keys decode as zero and unknown
// keys are ignored.
type Params struct {
	T    float64 `json:"t"`
	TP   float64 `json:"tp"`
	Eps  float64 `json:"eps"`
	EpsA float64 `json:"epsA"`
	EpsB float64 `json:"epsB"`
}

// Model selects the Hamiltonian.
type Model struct {
	Lattice Lattice `json:"lattice" validate:"required,oneof=1d_chain 2d_square 2d_honeycomb"`
	Params  Params  `json:"params"`
}

// KPoint is a labeled path vertex.
type KPoint struct {
	Label string       `json:"label"`
	K     geom.Vector3 `json:"k"`
}

// KPath is a piecewise-linear path; NPerSegment counts both endpoints of each segment.
type KPath struct {
	Points      []KPoint `json:"points" validate:"min=2"`
	NPerSegment *int     `json:"nPerSegment,omitempty" validate:"omitempty,min=10,max=800"`
}

// DOSParams configures the density of states. Enabled defaults to true.
type DOSParams struct {
	Enabled *bool    `json:"enabled,omitempty"`
	NE      *int     `json:"nE,omitempty" validate:"omitempty,min=200,max=4000"`
	Eta     *float64 `json:"eta,omitempty" validate:"omitempty,gt=0"`
	EMin    *float64 `json:"eMin,omitempty"`
	EMax    *float64 `json:"eMax,omitempty"`
}

// Request is the calcTB input.
type Request struct {
	Model Model      `json:"model"`
	KPath KPath      `json:"kpath"`
	DOS   *DOSParams `json:"dos,omitempty"`
}

// Label marks the sample index of a path vertex.
type Label struct {
	AtIndex int    `json:"atIndex"`
	Label   string `json:"label"`
}

// DOS is g(E) on an ascending energy grid.
type DOS struct {
	E []float64 `json:"E"`
	G []float64 `json:"g"`
}

// Meta carries the request hash of a TB computation.
type Meta struct {
	RequestHash string `json:"requestHash"`
}

// Response is the calcTB output. Bands[b][j] is the b-th smallest eigenvalue at sample j.
type Response struct {
	K      []float64   `json:"k"`
	Labels []Label     `json:"labels"`
	Bands  [][]float64 `json:"bands"`
	DOS    *DOS        `json:"dos,omitempty"`
	Meta   Meta        `json:"meta"`
}

// Limits caps the work a single request may ask for.
type Limits struct {
	MaxKSamples int
}

// DefaultLimits returns the caps used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxKSamples: 100_000}
}

// Normalize returns a copy with every optional field defaulted. EMin and EMax
// stay unset because their defaults depend on the computed bands.
func (r Request) Normalize() Request {
	out := r
	if out.KPath.Points == nil {
		out.KPath.Points = []KPoint{}
	}
	if out.KPath.NPerSegment == nil {
		n := DefaultNPerSegment
		out.KPath.NPerSegment = &n
	}
	d := DOSParams{}
	if r.DOS != nil {
		d = *r.DOS
	}
	if d.Enabled == nil {
		on := true
		d.Enabled = &on
	}
	if d.NE == nil {
		n := DefaultNE
		d.NE = &n
	}
	if d.Eta == nil {
		eta := DefaultEta
		d.Eta = &eta
	}
	out.DOS = &d
	return out
}
