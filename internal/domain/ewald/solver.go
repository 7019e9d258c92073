package ewald

import (
	"context"
	"fmt"
	"math"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/reqhash"
	"github.com/matiasleandrokruk/solidstate/internal/domain/validation"
)

// ctxCheckEvery is how many candidates are tested between cancellation checks.
const ctxCheckEvery = 4096

// Solver runs Ewald intersections. It has no state and is safe for concurrent use.
type Solver struct{}

// NewSolver creates a Solver.
func NewSolver() *Solver {
	return &Solver{}
}

// Hash returns meta.requestHash for r.
func Hash(r Request) (string, error) {
	return reqhash.Sum(Op, r.Normalize())
}

// Validate checks the preconditions of r.
func (r Request) Validate() error {
	if err := validation.Struct(Op, r); err != nil {
		return err
	}
	if len(r.Crystal.GPoints) != len(r.Crystal.GHKL) {
		return calcerr.Invalid(Op, "crystal.gHKL", "length %d does not match gPoints length %d",
			len(r.Crystal.GHKL), len(r.Crystal.GPoints))
	}
	for i, g := range r.Crystal.GPoints {
		if !g.IsFinite() {
			return calcerr.Invalid(Op, fmt.Sprintf("crystal.gPoints[%d]", i), "must be finite")
		}
	}
	if err := checkUnit("beam.kInDir", r.Beam.KInDir); err != nil {
		return err
	}
	if o := r.Beam.Orientation; o != nil && !o.IsFinite() {
		return calcerr.Invalid(Op, "beam.orientation", "contains non-finite entries")
	}
	if err := checkUnit("detector.normal", r.Detector.Normal); err != nil {
		return err
	}
	if err := checkUnit("detector.up", r.Detector.Up); err != nil {
		return err
	}
	if r.Detector.Up.Cross(r.Detector.Normal).Norm() <= UnitTolerance {
		return calcerr.Invalid(Op, "detector.up", "must not be parallel to detector.normal")
	}
	return nil
}

func checkUnit(field string, v geom.Vector3) error {
	if !v.IsFinite() {
		return calcerr.Invalid(Op, field, "must be finite")
	}
	if n := v.Norm(); math.Abs(n-1) > UnitTolerance {
		return calcerr.Invalid(Op, field, "must be a unit vector, |v|=%.9g", n)
	}
	return nil
}

// Solve tests every candidate G against the Ewald sphere and projects the
// accepted rays onto the detector. Spots keep the input order of gPoints.
func (s *Solver) Solve(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	hash, err := Hash(req)
	if err != nil {
		return nil, fmt.Errorf("ewald: hash request: %w", err)
	}

	k := 2 * math.Pi / req.Beam.Lambda
	kIn := req.Beam.KInDir.Scale(k)
	tol := RelativeShellTolerance * k

	det := req.Detector
	right := det.Up.Cross(det.Normal).Normalize()
	intensity := intensityFunc(req.Intensity)

	resp := &Response{
		Spots: []Spot{},
		Meta:  Meta{RequestHash: hash, NTested: len(req.Crystal.GPoints)},
	}

	for i, g := range req.Crystal.GPoints {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if req.Beam.Orientation != nil {
			g = req.Beam.Orientation.Apply(g)
		}
		// |G| within the shell tolerance is forward scattering, not a reflection.
		gNorm := g.Norm()
		if gNorm <= tol {
			continue
		}
		kOut := kIn.Add(g)
		kOutNorm := kOut.Norm()
		if math.Abs(kOutNorm-k) > tol {
			continue
		}
		dir := kOut.Scale(1 / kOutNorm)

		uv, ok := project(det, right, dir)
		if !ok {
			continue
		}
		resp.Spots = append(resp.Spots, Spot{
			HKL:       req.Crystal.GHKL[i],
			Q:         g,
			KOutDir:   dir,
			UV:        uv,
			Intensity: intensity(gNorm),
		})
	}
	return resp, nil
}

// project intersects the ray s·dir with the detector plane and returns the
// detector-local coordinates. ok is false when the ray is parallel to the
// plane, points away from it or lands outside the active area.
func project(det Detector, right, dir geom.Vector3) ([2]float64, bool) {
	denom := dir.Dot(det.Normal)
	if math.Abs(denom) <= parallelTolerance {
		return [2]float64{}, false
	}
	s := det.Distance / denom
	if s <= 0 {
		return [2]float64{}, false
	}
	p := dir.Scale(s).Sub(det.Normal.Scale(det.Distance))
	u, v := p.Dot(right), p.Dot(det.Up)
	if math.Abs(u) > det.Width/2 || math.Abs(v) > det.Height/2 {
		return [2]float64{}, false
	}
	return [2]float64{u, v}, true
}

func intensityFunc(in Intensity) func(gNorm float64) float64 {
	if in.Model == ModelStructureFactorLite {
		sigma := DefaultSigma
		if in.Sigma != nil {
			sigma = *in.Sigma
		}
		return func(gNorm float64) float64 {
			return math.Exp(-gNorm * gNorm / (2 * sigma * sigma))
		}
	}
	return func(float64) float64 { return 1 }
}
