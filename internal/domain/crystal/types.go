// Package crystal expands a unit cell into a supercell, enumerates reciprocal
// lattice vectors inside a cutoff and meshes crystallographic (hkl) planes.
package crystal

import (
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lattice"
)

// Op names the operation in errors and request hashes.
const Op = "crystal"

// DefaultGMax is the reciprocal cutoff used when the request omits it.
const DefaultGMax = 8.0

// HKL is an integer Miller triple.
type HKL = lattice.HKL

// BasisAtom is one atom of the unit-cell basis, in fractional coordinates.
type BasisAtom struct {
	Element string       `json:"element"`
	Frac    geom.Vector3 `json:"frac"`
	Magmom  *float64     `json:"magmom,omitempty"`
}

// Plane requests a mesh for the (h k l) family.
type Plane struct {
	H      int      `json:"h"`
	K      int      `json:"k"`
	L      int      `json:"l"`
	Offset *float64 `json:"offset,omitempty"`
	Size   *float64 `json:"size,omitempty" validate:"omitempty,gt=0"`
}

// ReciprocalParams bounds the G-vector enumeration.
type ReciprocalParams struct {
	GMax *float64 `json:"gMax,omitempty" validate:"omitempty,gt=0"`
}

// Request is the buildCrystal input.
type Request struct {
	Lattice    lattice.Params    `json:"lattice"`
	Basis      []BasisAtom       `json:"basis" validate:"required,min=1,dive"`
	Supercell  *[3]int           `json:"supercell,omitempty" validate:"omitempty,dive,gte=1"`
	Reciprocal *ReciprocalParams `json:"reciprocal,omitempty"`
	Planes     []Plane           `json:"planes" validate:"dive"`
}

// RealSpace is the real-space basis and origin.
type RealSpace struct {
	A      geom.Matrix3 `json:"A"`
	Origin geom.Vector3 `json:"origin"`
}

// ReciprocalSpace holds B and the enumerated G-vectors; GPoints and GHKL are index-aligned.
type ReciprocalSpace struct {
	B       geom.Matrix3   `json:"B"`
	GPoints []geom.Vector3 `json:"gPoints"`
	GHKL    []HKL          `json:"gHKL"`
}

// Atoms are the expanded supercell atoms; all three slices are index-aligned.
type Atoms struct {
	Positions []geom.Vector3 `json:"positions"`
	Elements  []string       `json:"elements"`
	Frac      []geom.Vector3 `json:"frac"`
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []geom.Vector3 `json:"vertices"`
	Faces    [][3]int       `json:"faces"`
}

// PlaneMesh is the meshed quad for one requested plane.
type PlaneMesh struct {
	HKL    HKL          `json:"hkl"`
	Normal geom.Vector3 `json:"normal"`
	Mesh   Mesh         `json:"mesh"`
}

// Meta carries the request identity and non-fatal advisories.
type Meta struct {
	RequestHash string   `json:"requestHash"`
	Warnings    []string `json:"warnings"`
}

// Response is the buildCrystal output.
type Response struct {
	Real   RealSpace       `json:"real"`
	Recip  ReciprocalSpace `json:"recip"`
	Atoms  Atoms           `json:"atoms"`
	Planes []PlaneMesh     `json:"planes"`
	Meta   Meta            `json:"meta"`
}

// Limits caps the work a single request may ask for.
type Limits struct {
	MaxAtoms       int
	MaxGCandidates int
}

// DefaultLimits returns the caps used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAtoms:       200_000,
		MaxGCandidates: 4_000_000,
	}
}

// Normalize returns a copy with every optional field defaulted, so that two
// requests meaning the same thing serialize (and hash) identically.
func (r Request) Normalize() Request {
	out := r
	if out.Supercell == nil {
		sc := [3]int{1, 1, 1}
		out.Supercell = &sc
	}
	gMax := DefaultGMax
	if r.Reciprocal != nil && r.Reciprocal.GMax != nil {
		gMax = *r.Reciprocal.GMax
	}
	out.Reciprocal = &ReciprocalParams{GMax: &gMax}
	if out.Planes == nil {
		out.Planes = []Plane{}
	}
	if out.Basis == nil {
		out.Basis = []BasisAtom{}
	}
	return out
}

// GMaxValue returns the effective cutoff.
func (r Request) GMaxValue() float64 {
	if r.Reciprocal != nil && r.Reciprocal.GMax != nil {
		return *r.Reciprocal.GMax
	}
	return DefaultGMax
}

// SupercellValue returns the effective supercell.
func (r Request) SupercellValue() [3]int {
	if r.Supercell != nil {
		return *r.Supercell
	}
	return [3]int{1, 1, 1}
}
