// Package ewald finds the reciprocal lattice points that satisfy the elastic
// scattering (Ewald sphere) condition and projects the diffracted rays onto a
// planar detector.
package ewald

import (
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lattice"
)

// Op names the operation in errors and request hashes.
const Op = "ewald"

const (
	// UnitTolerance bounds ||v| - 1| for every direction vector in the request.
	UnitTolerance = 1e-6

	// RelativeShellTolerance is the accepted ||k_out| - k| expressed as a
	// fraction of the sphere radius k = 2π/λ (so it is in reciprocal-length
	// units once multiplied by k).
	RelativeShellTolerance = 1e-3

	// parallelTolerance bounds |kOutDir·n̂| below which a ray is parallel to the detector.
	parallelTolerance = 1e-9

	// DefaultSigma is the structureFactorLite width when sigma is unset.
	DefaultSigma = 1.0
)

// IntensityModel selects how spot intensities are assigned.
type IntensityModel string

const (
	ModelUnit                IntensityModel = "unit"
	ModelStructureFactorLite IntensityModel = "structureFactorLite"
)

// Crystal is the reciprocal-lattice point cloud under test. GPoints and GHKL are index-aligned.
type Crystal struct {
	B       geom.Matrix3   `json:"B"`
	GPoints []geom.Vector3 `json:"gPoints"`
	GHKL    []lattice.HKL  `json:"gHKL"`
}

// Beam is the incident radiation. Orientation, when set, rotates every G before testing.
type Beam struct {
	Lambda      float64       `json:"lambda" validate:"gt=0"`
	KInDir      geom.Vector3  `json:"kInDir"`
	Orientation *geom.Matrix3 `json:"orientation,omitempty"`
}

// Detector is a rectangle at distance·normal, with in-plane vertical axis up.
type Detector struct {
	Distance float64      `json:"distance" validate:"gt=0"`
	Normal   geom.Vector3 `json:"normal"`
	Up       geom.Vector3 `json:"up"`
	Width    float64      `json:"width" validate:"gt=0"`
	Height   float64      `json:"height" validate:"gt=0"`
}

// Intensity selects the intensity model.
type Intensity struct {
	Model IntensityModel `json:"model" validate:"required,oneof=unit structureFactorLite"`
	Sigma *float64       `json:"sigma,omitempty" validate:"omitempty,gt=0"`
}

// Request is the calcEwald input.
type Request struct {
	Crystal   Crystal   `json:"crystal"`
	Beam      Beam      `json:"beam"`
	Detector  Detector  `json:"detector"`
	Intensity Intensity `json:"intensity"`
}

// Spot is one diffraction event.
type Spot struct {
	HKL       lattice.HKL  `json:"hkl"`
	Q         geom.Vector3 `json:"Q"`
	KOutDir   geom.Vector3 `json:"kOutDir"`
	UV        [2]float64   `json:"uv"`
	Intensity float64      `json:"intensity"`
}

// Meta carries the request identity and the number of candidates examined.
type Meta struct {
	RequestHash string `json:"requestHash"`
	NTested     int    `json:"nTested"`
}

// Response is the calcEwald output.
type Response struct {
	Spots []Spot `json:"spots"`
	Meta  Meta   `json:"meta"`
}

// Normalize returns a copy with optional fields defaulted for hashing.
func (r Request) Normalize() Request {
	out := r
	if out.Crystal.GPoints == nil {
		out.Crystal.GPoints = []geom.Vector3{}
	}
	if out.Crystal.GHKL == nil {
		out.Crystal.GHKL = []lattice.HKL{}
	}
	if out.Intensity.Model == ModelStructureFactorLite && out.Intensity.Sigma == nil {
		s := DefaultSigma
		out.Intensity.Sigma = &s
	}
	return out
}
