package tb

import (
	"context"
	"fmt"
	"math"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/reqhash"
	"github.com/matiasleandrokruk/solidstate/internal/domain/validation"
)

// Solver computes bands and DOS under fixed limits. Safe for concurrent use.
type Solver struct {
	limits Limits
}

// NewSolver creates a Solver. A zero MaxKSamples falls back to the default.
func NewSolver(l Limits) *Solver {
	if l.MaxKSamples <= 0 {
		l.MaxKSamples = DefaultLimits().MaxKSamples
	}
	return &Solver{limits: l}
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
	if _, ok := newHamiltonian(r.Model); !ok {
		return calcerr.Invalid(Op, "model.lattice", "unknown lattice %q", r.Model.Lattice)
	}
	p := r.Model.Params
	named := []struct {
		name string
		v    float64
	}{{"t", p.T}, {"tp", p.TP}, {"eps", p.Eps}, {"epsA", p.EpsA}, {"epsB", p.EpsB}}
	for _, f := range named {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return calcerr.Invalid(Op, "model.params."+f.name, "must be finite")
		}
	}
	for i, pt := range r.KPath.Points {
		if !pt.K.IsFinite() {
			return calcerr.Invalid(Op, fmt.Sprintf("kpath.points[%d].k", i), "must be finite")
		}
	}
	if d := r.DOS; d != nil {
		if d.EMin != nil && (math.IsNaN(*d.EMin) || math.IsInf(*d.EMin, 0)) {
			return calcerr.Invalid(Op, "dos.eMin", "must be finite")
		}
		if d.EMax != nil && (math.IsNaN(*d.EMax) || math.IsInf(*d.EMax, 0)) {
			return calcerr.Invalid(Op, "dos.eMax", "must be finite")
		}
		if d.EMin != nil && d.EMax != nil && !(*d.EMax > *d.EMin) {
			return calcerr.Invalid(Op, "dos.eMax", "must be greater than dos.eMin (%g <= %g)", *d.EMax, *d.EMin)
		}
	}
	return nil
}

// Solve samples the path, diagonalizes H(k) at every sample and, when
// enabled, broadens the eigenvalues into a DOS.
func (s *Solver) Solve(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	hash, err := Hash(req)
	if err != nil {
		return nil, fmt.Errorf("tb: hash request: %w", err)
	}

	n := *req.KPath.NPerSegment
	total := (len(req.KPath.Points)-1)*(n-1) + 1
	if total > s.limits.MaxKSamples {
		return nil, calcerr.Invalid(Op, "kpath.points", "%d k-samples requested, limit is %d", total, s.limits.MaxKSamples)
	}

	h, _ := newHamiltonian(req.Model)
	samples, arc, labels := samplePath(req.KPath.Points, n)

	dim := h.Dim()
	bands := make([][]float64, dim)
	for b := range bands {
		bands[b] = make([]float64, len(samples))
	}
	eig := make([]float64, dim)
	for j, k := range samples {
		h.Eigen(k, eig)
		for b := 0; b < dim; b++ {
			bands[b][j] = eig[b]
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{
		K:      arc,
		Labels: labels,
		Bands:  bands,
		Meta:   Meta{RequestHash: hash},
	}
	if *req.DOS.Enabled {
		dos, err := lorentzianDOS(ctx, bands, *req.DOS)
		if err != nil {
			return nil, err
		}
		resp.DOS = dos
	}
	return resp, nil
}

// samplePath returns n points per segment with shared vertices emitted once,
// so vertex i lands at index i·(n−1).
func samplePath(points []KPoint, n int) ([]geom.Vector3, []float64, []Label) {
	total := (len(points)-1)*(n-1) + 1
	samples := make([]geom.Vector3, 0, total)
	labels := make([]Label, 0, len(points))

	samples = append(samples, points[0].K)
	labels = append(labels, Label{AtIndex: 0, Label: points[0].Label})
	for seg := 0; seg+1 < len(points); seg++ {
		from, to := points[seg].K, points[seg+1].K
		step := to.Sub(from)
		for j := 1; j < n; j++ {
			if j == n-1 {
				samples = append(samples, to)
				continue
			}
			samples = append(samples, from.Add(step.Scale(float64(j)/float64(n-1))))
		}
		labels = append(labels, Label{AtIndex: len(samples) - 1, Label: points[seg+1].Label})
	}

	arc := make([]float64, len(samples))
	for j := 1; j < len(samples); j++ {
		arc[j] = arc[j-1] + samples[j].Sub(samples[j-1]).Norm()
	}
	return samples, arc, labels
}

// lorentzianDOS evaluates g(E) = (1/Nk)·Σ (η/π)/((E−ε)²+η²) over all bands
// and samples on an nE-point grid.
func lorentzianDOS(ctx context.Context, bands [][]float64, p DOSParams) (*DOS, error) {
	eta := *p.Eta
	nE := *p.NE
	nk := len(bands[0])

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, band := range bands {
		for _, e := range band {
			lo = math.Min(lo, e)
			hi = math.Max(hi, e)
		}
	}
	eMin, eMax := lo-dosMarginEtas*eta, hi+dosMarginEtas*eta
	if p.EMin != nil {
		eMin = *p.EMin
	}
	if p.EMax != nil {
		eMax = *p.EMax
	}
	if !(eMax > eMin) {
		return nil, calcerr.Invalid(Op, "dos", "energy window [%g, %g] is empty", eMin, eMax)
	}

	out := &DOS{E: make([]float64, nE), G: make([]float64, nE)}
	dE := (eMax - eMin) / float64(nE-1)
	norm := eta / math.Pi / float64(nk)
	eta2 := eta * eta
	for i := 0; i < nE; i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e := eMin + float64(i)*dE
		if i == nE-1 {
			e = eMax
		}
		sum := 0.0
		for _, band := range bands {
			for _, eps := range band {
				d := e - eps
				sum += 1 / (d*d + eta2)
			}
		}
		out.E[i] = e
		out.G[i] = norm * sum
	}
	return out, nil
}
