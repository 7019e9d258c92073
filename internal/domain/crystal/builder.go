package crystal

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lattice"
	"github.com/matiasleandrokruk/solidstate/internal/domain/reqhash"
	"github.com/matiasleandrokruk/solidstate/internal/domain/validation"
)

// Builder runs crystal builds under fixed resource limits. It holds no
// per-request state and is safe for concurrent use.
type Builder struct {
	limits Limits
}

// NewBuilder creates a Builder. Zero limit fields fall back to DefaultLimits.
func NewBuilder(l Limits) *Builder {
	def := DefaultLimits()
	if l.MaxAtoms <= 0 {
		l.MaxAtoms = def.MaxAtoms
	}
	if l.MaxGCandidates <= 0 {
		l.MaxGCandidates = def.MaxGCandidates
	}
	return &Builder{limits: l}
}

// Hash returns meta.requestHash for r.
func Hash(r Request) (string, error) {
	return reqhash.Sum(Op, r.Normalize())
}

// Validate checks the schema-level preconditions of r.
func (r Request) Validate() error {
	if err := validation.Struct(Op, r); err != nil {
		return err
	}
	if r.Reciprocal != nil && r.Reciprocal.GMax != nil {
		if g := *r.Reciprocal.GMax; math.IsNaN(g) || math.IsInf(g, 0) {
			return calcerr.Invalid(Op, "reciprocal.gMax", "must be finite")
		}
	}
	for i, p := range r.Planes {
		if p.H == 0 && p.K == 0 && p.L == 0 {
			return calcerr.Invalid(Op, fmt.Sprintf("planes[%d]", i), "Miller indices (0 0 0) do not define a plane")
		}
		if p.Offset != nil && (math.IsNaN(*p.Offset) || math.IsInf(*p.Offset, 0)) {
			return calcerr.Invalid(Op, fmt.Sprintf("planes[%d].offset", i), "must be finite")
		}
	}
	for i, a := range r.Basis {
		if !a.Frac.IsFinite() {
			return calcerr.Invalid(Op, fmt.Sprintf("basis[%d].frac", i), "must be finite")
		}
	}
	return nil
}

// Build computes the full crystal response for req.
func (b *Builder) Build(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalize()

	hash, err := Hash(req)
	if err != nil {
		return nil, fmt.Errorf("crystal: hash request: %w", err)
	}

	cell, err := lattice.Build(req.Lattice)
	if err != nil {
		return nil, err
	}

	// Caps are evaluated in float64: the int products overflow for
	// supercells and cutoffs that still pass the schema checks.
	sc := req.SupercellValue()
	nAtoms := float64(sc[0]) * float64(sc[1]) * float64(sc[2]) * float64(len(req.Basis))
	if nAtoms > float64(b.limits.MaxAtoms) {
		return nil, calcerr.Invalid(Op, "supercell", "%.4g atoms requested, limit is %d", nAtoms, b.limits.MaxAtoms)
	}

	gMax := req.GMaxValue()
	fb := hklBounds(cell, gMax)
	candidates := (2*fb[0] + 1) * (2*fb[1] + 1) * (2*fb[2] + 1)
	if !(candidates <= float64(b.limits.MaxGCandidates)) {
		return nil, calcerr.Invalid(Op, "reciprocal.gMax", "cutoff %g needs %.4g candidate G-vectors, limit is %d",
			gMax, candidates, b.limits.MaxGCandidates)
	}
	bounds := [3]int{int(fb[0]), int(fb[1]), int(fb[2])}

	resp := &Response{
		Real:  RealSpace{A: cell.A},
		Recip: ReciprocalSpace{B: cell.B},
		Atoms: expandAtoms(cell.A, req.Basis, sc),
		Meta:  Meta{RequestHash: hash, Warnings: []string{}},
	}

	points, hkls, err := enumerateG(ctx, cell.B, gMax, bounds)
	if err != nil {
		return nil, err
	}
	resp.Recip.GPoints = points
	resp.Recip.GHKL = hkls
	if len(points) == 0 {
		shortest := cell.B.RowLengths()
		resp.Meta.Warnings = append(resp.Meta.Warnings, fmt.Sprintf(
			"reciprocal.gMax=%g yields no reciprocal lattice points (shortest basis |B| = %.6g)",
			gMax, math.Min(shortest[0], math.Min(shortest[1], shortest[2]))))
	}

	resp.Planes = make([]PlaneMesh, 0, len(req.Planes))
	defaultSize := maxRow(cell.A)
	for i, p := range req.Planes {
		pm := meshPlane(cell, p, defaultSize)
		resp.Planes = append(resp.Planes, pm)
		if w := planeOutsideWarning(cell.A, sc, p, pm.Normal, i); w != "" {
			resp.Meta.Warnings = append(resp.Meta.Warnings, w)
		}
	}

	return resp, nil
}

// expandAtoms walks cell offsets x-major (i outermost), then basis atoms in
// input order. The order keeps positions, elements and frac index-aligned.
func expandAtoms(a geom.Matrix3, basis []BasisAtom, sc [3]int) Atoms {
	n := sc[0] * sc[1] * sc[2] * len(basis)
	out := Atoms{
		Positions: make([]geom.Vector3, 0, n),
		Elements:  make([]string, 0, n),
		Frac:      make([]geom.Vector3, 0, n),
	}
	for i := 0; i < sc[0]; i++ {
		for j := 0; j < sc[1]; j++ {
			for k := 0; k < sc[2]; k++ {
				offset := geom.Vector3{float64(i), float64(j), float64(k)}
				for _, atom := range basis {
					frac := atom.Frac.Add(offset)
					out.Frac = append(out.Frac, frac)
					out.Positions = append(out.Positions, a.Combine(frac))
					out.Elements = append(out.Elements, atom.Element)
				}
			}
		}
	}
	return out
}

// hklBounds returns the per-axis Miller index bound. It is the larger of
// ceil(gMax/min|Bᵢ|)+1 and the exact bound ceil(gMax·|Aᵢ|/2π), which holds
// because h = G·A₀/2π. The bounds stay float64 until the caller has checked
// them against the candidate cap.
func hklBounds(cell lattice.Cell, gMax float64) [3]float64 {
	bl := cell.B.RowLengths()
	minB := math.Min(bl[0], math.Min(bl[1], bl[2]))
	box := math.Ceil(gMax/minB) + 1
	al := cell.A.RowLengths()
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = math.Max(box, math.Ceil(gMax*al[i]/(2*math.Pi)))
	}
	return out
}

type gCandidate struct {
	g    geom.Vector3
	hkl  HKL
	norm float64
}

func enumerateG(ctx context.Context, b geom.Matrix3, gMax float64, bounds [3]int) ([]geom.Vector3, []HKL, error) {
	var found []gCandidate
	for h := -bounds[0]; h <= bounds[0]; h++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for k := -bounds[1]; k <= bounds[1]; k++ {
			for l := -bounds[2]; l <= bounds[2]; l++ {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				g := b.Combine(geom.Vector3{float64(h), float64(k), float64(l)})
				n := g.Norm()
				if n <= gMax {
					found = append(found, gCandidate{g: g, hkl: HKL{h, k, l}, norm: n})
				}
			}
		}
	}

	tieTol := 1e-12 * math.Max(1, gMax)
	sort.SliceStable(found, func(i, j int) bool {
		a, c := found[i], found[j]
		if math.Abs(a.norm-c.norm) > tieTol {
			return a.norm < c.norm
		}
		return lessHKL(a.hkl, c.hkl)
	})

	points := make([]geom.Vector3, len(found))
	hkls := make([]HKL, len(found))
	for i, c := range found {
		points[i] = c.g
		hkls[i] = c.hkl
	}
	return points, hkls, nil
}

func lessHKL(a, b HKL) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func maxRow(m geom.Matrix3) float64 {
	l := m.RowLengths()
	return math.Max(l[0], math.Max(l[1], l[2]))
}

// meshPlane builds a square of half-extent size centered at offset·n̂ and
// split into two triangles wound counter-clockwise as seen from +n̂.
func meshPlane(cell lattice.Cell, p Plane, defaultSize float64) PlaneMesh {
	hkl := HKL{p.H, p.K, p.L}
	normal := cell.B.Combine(geom.Vector3{float64(p.H), float64(p.K), float64(p.L)}).Normalize()

	size := defaultSize
	if p.Size != nil {
		size = *p.Size
	}
	offset := 0.0
	if p.Offset != nil {
		offset = *p.Offset
	}

	u, v := inPlaneAxes(normal)
	center := normal.Scale(offset)
	su, sv := u.Scale(size), v.Scale(size)

	return PlaneMesh{
		HKL:    hkl,
		Normal: normal,
		Mesh: Mesh{
			Vertices: []geom.Vector3{
				center.Sub(su).Sub(sv),
				center.Add(su).Sub(sv),
				center.Add(su).Add(sv),
				center.Sub(su).Add(sv),
			},
			Faces: [][3]int{{0, 1, 2}, {0, 2, 3}},
		},
	}
}

// inPlaneAxes returns unit u, v orthogonal to n with u × v = n.
func inPlaneAxes(n geom.Vector3) (geom.Vector3, geom.Vector3) {
	// Seed with the coordinate axis least aligned with n.
	ax, ay, az := math.Abs(n[0]), math.Abs(n[1]), math.Abs(n[2])
	seed := geom.Vector3{0, 0, 1}
	switch {
	case ax <= ay && ax <= az:
		seed = geom.Vector3{1, 0, 0}
	case ay <= az:
		seed = geom.Vector3{0, 1, 0}
	}
	u := n.Cross(seed).Normalize()
	v := n.Cross(u)
	return u, v
}

// planeOutsideWarning reports a plane lying entirely outside the supercell
// when at least one supercell axis has size 1.
func planeOutsideWarning(a geom.Matrix3, sc [3]int, p Plane, normal geom.Vector3, idx int) string {
	if sc[0] != 1 && sc[1] != 1 && sc[2] != 1 {
		return ""
	}
	offset := 0.0
	if p.Offset != nil {
		offset = *p.Offset
	}
	const eps = 1e-9
	above, below := 0, 0
	for c := 0; c < 8; c++ {
		f := geom.Vector3{
			float64((c & 1) * sc[0]),
			float64((c >> 1 & 1) * sc[1]),
			float64((c >> 2 & 1) * sc[2]),
		}
		d := a.Combine(f).Dot(normal) - offset
		switch {
		case d > eps:
			above++
		case d < -eps:
			below++
		}
	}
	if above == 8 || below == 8 {
		return fmt.Sprintf("planes[%d] (%d %d %d) at offset %g lies entirely outside the %dx%dx%d supercell",
			idx, p.H, p.K, p.L, offset, sc[0], sc[1], sc[2])
	}
	return ""
}
