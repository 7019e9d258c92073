// Package lattice builds real-space and reciprocal-space bases from lattice parameters.
package lattice

import (
	"math"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
)

// Kind enumerates the supported Bravais lattice constructions.
type Kind string

const (
	KindSC     Kind = "sc"
	KindBCC    Kind = "bcc"
	KindFCC    Kind = "fcc"
	KindHex    Kind = "hex"
	KindCustom Kind = "custom"
)

// Kinds lists every accepted kind in a stable order.
var Kinds = []Kind{KindSC, KindBCC, KindFCC, KindHex, KindCustom}

// SingularTolerance is the |det A| threshold below which a basis is treated as singular.
const SingularTolerance = 1e-9

// DefaultHexC is the c axis used for hex lattices when c is unset.
const DefaultHexC = 5.0

const opBasis = "lattice.basis"

// HKL is an integer Miller triple (h, k, l).
type HKL [3]int

// Params describes a lattice. Basis (JSON "A") is only read for KindCustom.
type Params struct {
	Kind  Kind          `json:"kind" validate:"required,oneof=sc bcc fcc hex custom"`
	A     float64       `json:"a" validate:"gt=0"`
	B     *float64      `json:"b,omitempty" validate:"omitempty,gt=0"`
	C     *float64      `json:"c,omitempty" validate:"omitempty,gt=0"`
	Alpha *float64      `json:"alpha,omitempty"`
	Beta  *float64      `json:"beta,omitempty"`
	Gamma *float64      `json:"gamma,omitempty"`
	Basis *geom.Matrix3 `json:"A,omitempty" validate:"required_if=Kind custom"`
}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSC, KindBCC, KindFCC, KindHex, KindCustom:
		return true
	}
	return false
}

// BasisFor returns the real-space basis A (rows are lattice vectors).
func BasisFor(p Params) (geom.Matrix3, error) {
	if !(p.A > 0) {
		return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.a", "must be > 0, got %g", p.A)
	}
	a := p.A
	half := a / 2

	switch p.Kind {
	case KindSC:
		return geom.Matrix3{{a, 0, 0}, {0, a, 0}, {0, 0, a}}, nil
	case KindBCC:
		return geom.Matrix3{
			{-half, half, half},
			{half, -half, half},
			{half, half, -half},
		}, nil
	case KindFCC:
		return geom.Matrix3{
			{0, half, half},
			{half, 0, half},
			{half, half, 0},
		}, nil
	case KindHex:
		c := DefaultHexC
		if p.C != nil {
			if !(*p.C > 0) {
				return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.c", "must be > 0, got %g", *p.C)
			}
			c = *p.C
		}
		return geom.Matrix3{
			{a, 0, 0},
			{-half, a * math.Sqrt(3) / 2, 0},
			{0, 0, c},
		}, nil
	case KindCustom:
		if p.Basis == nil {
			return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.A", "required when kind is custom")
		}
		m := *p.Basis
		if !m.IsFinite() {
			return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.A", "contains non-finite entries")
		}
		if det := m.Det(); math.Abs(det) <= SingularTolerance {
			return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.A", "singular basis (det=%g)", det)
		}
		return m, nil
	}
	return geom.Matrix3{}, calcerr.Invalid(opBasis, "lattice.kind", "unknown kind %q", p.Kind)
}

// Reciprocal returns B = 2π·(A⁻¹)ᵀ so that Aᵢ·Bⱼ = 2π·δᵢⱼ.
func Reciprocal(a geom.Matrix3) (geom.Matrix3, error) {
	inv, ok := a.Inverse(SingularTolerance)
	if !ok {
		return geom.Matrix3{}, calcerr.Degenerate("lattice.reciprocal", "lattice", "basis is singular (det=%g)", a.Det())
	}
	b := inv.Transpose()
	for i := range b {
		b[i] = b[i].Scale(2 * math.Pi)
	}
	return b, nil
}

// Cell bundles a basis with its reciprocal.
type Cell struct {
	A geom.Matrix3
	B geom.Matrix3
}

// Build computes both bases for p.
func Build(p Params) (Cell, error) {
	a, err := BasisFor(p)
	if err != nil {
		return Cell{}, err
	}
	b, err := Reciprocal(a)
	if err != nil {
		return Cell{}, err
	}
	return Cell{A: a, B: b}, nil
}
