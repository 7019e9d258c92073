package tb

import (
	"math"
	"math/cmplx"

	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
)

// hamiltonian yields the sorted eigenvalues of H(k).
type hamiltonian interface {
	// Dim is the matrix dimension and therefore the band count.
	Dim() int
	// Eigen writes the ascending eigenvalues at k into out[:Dim()].
	Eigen(k geom.Vector3, out []float64)
}

// newHamiltonian dispatches on the closed set of lattices; ok is false for
// anything else.
func newHamiltonian(m Model) (hamiltonian, bool) {
	switch m.Lattice {
	case Chain1D:
		return chain{m.Params}, true
	case Square2D:
		return square{m.Params}, true
	case Honeycomb2D:
		return honeycomb{m.Params}, true
	}
	return nil, false
}

// chain: H(k) = eps − 2t·cos kx.
type chain struct{ p Params }

func (chain) Dim() int { return 1 }

func (h chain) Eigen(k geom.Vector3, out []float64) {
	out[0] = h.p.Eps - 2*h.p.T*math.Cos(k[0])
}

// square: H(k) = eps − 2t(cos kx + cos ky) − 4t'·cos kx·cos ky.
type square struct{ p Params }

func (square) Dim() int { return 1 }

func (h square) Eigen(k geom.Vector3, out []float64) {
	cx, cy := math.Cos(k[0]), math.Cos(k[1])
	out[0] = h.p.Eps - 2*h.p.T*(cx+cy) - 4*h.p.TP*cx*cy
}

// Honeycomb Bravais vectors with unit lattice constant.
var (
	honeyA1 = geom.Vector3{1, 0, 0}
	honeyA2 = geom.Vector3{-0.5, math.Sqrt(3) / 2, 0}
)

// honeycomb is the two-site model with diagonal (epsA, epsB) and off-diagonal
// f(k) = −t(1 + e^{−ik·a1} + e^{−ik·a2}).
type honeycomb struct{ p Params }

func (honeycomb) Dim() int { return 2 }

func (h honeycomb) Eigen(k geom.Vector3, out []float64) {
	f := complex(-h.p.T, 0) * (1 + cmplx.Exp(complex(0, -k.Dot(honeyA1))) + cmplx.Exp(complex(0, -k.Dot(honeyA2))))
	mean := (h.p.EpsA + h.p.EpsB) / 2
	half := (h.p.EpsA - h.p.EpsB) / 2
	r := math.Hypot(half, cmplx.Abs(f))
	out[0] = mean - r
	out[1] = mean + r
}
