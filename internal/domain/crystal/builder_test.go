package crystal

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lattice"
)

func f64(v float64) *float64 { return &v }

func poloniumRequest() Request {
	return Request{
		Lattice:    lattice.Params{Kind: lattice.KindSC, A: 3.0},
		Basis:      []BasisAtom{{Element: "Po", Frac: geom.Vector3{0, 0, 0}}},
		Supercell:  &[3]int{1, 1, 1},
		Reciprocal: &ReciprocalParams{GMax: f64(6.0)},
		Planes:     []Plane{},
	}
}

func TestBuild_PoloniumExample(t *testing.T) {
	t.Parallel()

	resp, err := NewBuilder(Limits{}).Build(context.Background(), poloniumRequest())
	require.NoError(t, err)

	require.Len(t, resp.Atoms.Positions, 1)
	assert.Equal(t, geom.Vector3{0, 0, 0}, resp.Atoms.Positions[0])
	assert.Equal(t, []string{"Po"}, resp.Atoms.Elements)
	assert.Equal(t, geom.Matrix3{{3, 0, 0}, {0, 3, 0}, {0, 0, 3}}, resp.Real.A)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 2 * math.Pi / 3
			}
			assert.InDelta(t, want, resp.Recip.B[i][j], 1e-12)
		}
	}

	// h²+k²+l² <= 8 shells: 6+12+8+6+24+24+12.
	assert.Len(t, resp.Recip.GPoints, 92)
	assert.Equal(t, HKL{-1, 0, 0}, resp.Recip.GHKL[0])
	assert.Empty(t, resp.Meta.Warnings)
	assert.Len(t, resp.Meta.RequestHash, 64)
}

func TestBuild_AtomCountAndOrder(t *testing.T) {
	t.Parallel()

	req := Request{
		Lattice: lattice.Params{Kind: lattice.KindFCC, A: 5.64},
		Basis: []BasisAtom{
			{Element: "Na", Frac: geom.Vector3{0, 0, 0}},
			{Element: "Cl", Frac: geom.Vector3{0.5, 0.5, 0.5}},
		},
		Supercell: &[3]int{2, 3, 1},
	}
	resp, err := NewBuilder(Limits{}).Build(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Atoms.Positions, 2*3*1*2)
	require.Len(t, resp.Atoms.Elements, 12)
	require.Len(t, resp.Atoms.Frac, 12)

	// x-major offsets, basis order inside each offset.
	assert.Equal(t, geom.Vector3{0, 0, 0}, resp.Atoms.Frac[0])
	assert.Equal(t, geom.Vector3{0.5, 0.5, 0.5}, resp.Atoms.Frac[1])
	assert.Equal(t, geom.Vector3{0, 1, 0}, resp.Atoms.Frac[2])
	assert.Equal(t, geom.Vector3{1, 0, 0}, resp.Atoms.Frac[6])
	assert.Equal(t, "Cl", resp.Atoms.Elements[7])

	for i, f := range resp.Atoms.Frac {
		assert.Equal(t, resp.Real.A.Combine(f), resp.Atoms.Positions[i])
	}
}

func TestBuild_GPointsWithinCutoffAndSorted(t *testing.T) {
	t.Parallel()

	req := Request{
		Lattice:    lattice.Params{Kind: lattice.KindHex, A: 3.21, C: f64(5.21)},
		Basis:      []BasisAtom{{Element: "Mg"}},
		Reciprocal: &ReciprocalParams{GMax: f64(7.5)},
	}
	resp, err := NewBuilder(Limits{}).Build(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Recip.GPoints)
	require.Len(t, resp.Recip.GHKL, len(resp.Recip.GPoints))

	prev := 0.0
	for i, g := range resp.Recip.GPoints {
		n := g.Norm()
		assert.LessOrEqual(t, n, 7.5)
		assert.NotEqual(t, HKL{0, 0, 0}, resp.Recip.GHKL[i])
		assert.GreaterOrEqual(t, n, prev-1e-9, "index %d out of order", i)
		prev = n

		h := resp.Recip.GHKL[i]
		want := resp.Recip.B.Combine(geom.Vector3{float64(h[0]), float64(h[1]), float64(h[2])})
		assert.Equal(t, want, g)
	}
}

func TestBuild_GEnumerationIsComplete(t *testing.T) {
	t.Parallel()

	// Strongly oblique basis: the exact bound must keep every point the box would miss.
	A := geom.Matrix3{{1, 0, 0}, {0.95, 0.2, 0}, {0, 0, 1}}
	req := Request{
		Lattice:    lattice.Params{Kind: lattice.KindCustom, A: 1, Basis: &A},
		Basis:      []BasisAtom{{Element: "X"}},
		Reciprocal: &ReciprocalParams{GMax: f64(20)},
	}
	resp, err := NewBuilder(Limits{}).Build(context.Background(), req)
	require.NoError(t, err)

	cell, err := lattice.Build(req.Lattice)
	require.NoError(t, err)
	brute := 0
	for h := -60; h <= 60; h++ {
		for k := -60; k <= 60; k++ {
			for l := -60; l <= 60; l++ {
				if h == 0 && k == 0 && l == 0 {
					continue
				}
				if cell.B.Combine(geom.Vector3{float64(h), float64(k), float64(l)}).Norm() <= 20 {
					brute++
				}
			}
		}
	}
	assert.Equal(t, brute, len(resp.Recip.GPoints))
}

func TestBuild_PlaneMeshWinding(t *testing.T) {
	t.Parallel()

	req := poloniumRequest()
	req.Planes = []Plane{
		{H: 1, K: 1, L: 1, Offset: f64(0.5), Size: f64(4)},
		{H: 0, K: 0, L: 2},
		{H: -1, K: 2, L: 0},
	}
	resp, err := NewBuilder(Limits{}).Build(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Planes, 3)

	for _, pm := range resp.Planes {
		assert.InDelta(t, 1.0, pm.Normal.Norm(), 1e-12)
		require.Len(t, pm.Mesh.Vertices, 4)
		require.Len(t, pm.Mesh.Faces, 2)
		for _, f := range pm.Mesh.Faces {
			v0, v1, v2 := pm.Mesh.Vertices[f[0]], pm.Mesh.Vertices[f[1]], pm.Mesh.Vertices[f[2]]
			n := v1.Sub(v0).Cross(v2.Sub(v0))
			assert.Greater(t, n.Dot(pm.Normal), 0.0, "face %v of %v must be CCW from +normal", f, pm.HKL)
		}
	}

	first := resp.Planes[0]
	want := geom.Vector3{1, 1, 1}.Normalize()
	for i := range want {
		assert.InDelta(t, want[i], first.Normal[i], 1e-12)
	}
	var centroid geom.Vector3
	for _, v := range first.Mesh.Vertices {
		centroid = centroid.Add(v.Scale(0.25))
		assert.InDelta(t, 0.5, v.Dot(first.Normal), 1e-9, "vertex must lie on the plane")
	}
	assert.InDelta(t, 0.5, centroid.Norm(), 1e-9)
	assert.InDelta(t, 8.0, first.Mesh.Vertices[0].Sub(first.Mesh.Vertices[1]).Norm(), 1e-9)

	// Default half-extent is the longest real-space basis vector.
	second := resp.Planes[1]
	assert.InDelta(t, 6.0, second.Mesh.Vertices[0].Sub(second.Mesh.Vertices[1]).Norm(), 1e-9)
}

func TestBuild_InvalidInputs(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		mutate func(*Request)
		field  string
	}{
		"degenerate plane": {func(r *Request) { r.Planes = []Plane{{H: 0, K: 0, L: 0}} }, "planes[0]"},
		"empty basis":      {func(r *Request) { r.Basis = []BasisAtom{} }, "basis"},
		"nil basis":        {func(r *Request) { r.Basis = nil }, "basis"},
		"negative a":       {func(r *Request) { r.Lattice.A = -1 }, "lattice.a"},
		"zero supercell":   {func(r *Request) { r.Supercell = &[3]int{1, 0, 1} }, "supercell[1]"},
		"zero gMax":        {func(r *Request) { r.Reciprocal = &ReciprocalParams{GMax: f64(0)} }, "reciprocal.gMax"},
		"unknown kind":     {func(r *Request) { r.Lattice.Kind = "tetragonal" }, "lattice.kind"},
		"bad plane size":   {func(r *Request) { r.Planes = []Plane{{H: 1, Size: f64(-2)}} }, "planes[0].size"},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := poloniumRequest()
			tc.mutate(&req)
			_, err := NewBuilder(Limits{}).Build(context.Background(), req)
			require.Error(t, err)
			ce, ok := calcerr.As(err)
			require.True(t, ok, "want *calcerr.Error, got %T", err)
			assert.Equal(t, calcerr.KindInvalidInput, ce.Kind)
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestBuild_SingularCustomBasis(t *testing.T) {
	t.Parallel()

	A := geom.Matrix3{{1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	req := poloniumRequest()
	req.Lattice = lattice.Params{Kind: lattice.KindCustom, A: 1, Basis: &A}
	_, err := NewBuilder(Limits{}).Build(context.Background(), req)
	assert.ErrorIs(t, err, calcerr.ErrInvalidInput)
}

func TestBuild_Warnings(t *testing.T) {
	t.Parallel()

	req := poloniumRequest()
	req.Reciprocal = &ReciprocalParams{GMax: f64(1.0)}
	req.Planes = []Plane{{H: 1, K: 0, L: 0, Offset: f64(10)}}
	resp, err := NewBuilder(Limits{}).Build(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, resp.Recip.GPoints)
	require.Len(t, resp.Meta.Warnings, 2)
	assert.Contains(t, resp.Meta.Warnings[0], "yields no reciprocal lattice points")
	assert.Contains(t, resp.Meta.Warnings[1], "outside")
}

func TestBuild_Limits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limits    Limits
		supercell [3]int
		gMax      float64
		field     string
	}{
		{"atom cap", Limits{MaxAtoms: 999}, [3]int{10, 10, 10}, 6, "supercell"},
		{"atom count overflows int", Limits{}, [3]int{2097152, 2097152, 2097152}, 6, "supercell"},
		{"single huge axis", Limits{}, [3]int{math.MaxInt, 1, 1}, 6, "supercell"},
		{"candidate cap", Limits{MaxGCandidates: 1000}, [3]int{1, 1, 1}, 500, "reciprocal.gMax"},
		{"candidate count overflows int", Limits{}, [3]int{1, 1, 1}, 1e19, "reciprocal.gMax"},
		{"index bound overflows int", Limits{}, [3]int{1, 1, 1}, 1e300, "reciprocal.gMax"},
		{"infinite cutoff", Limits{}, [3]int{1, 1, 1}, math.Inf(1), "reciprocal.gMax"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := poloniumRequest()
			sc := tt.supercell
			req.Supercell = &sc
			req.Reciprocal = &ReciprocalParams{GMax: f64(tt.gMax)}

			resp, err := NewBuilder(tt.limits).Build(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, resp)
			ce, ok := calcerr.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, calcerr.KindInvalidInput, ce.Kind)
			assert.Equal(t, tt.field, ce.Field)
			assert.NotContains(t, ce.Msg, "-", "cap message must not report a wrapped count")
		})
	}
}

func TestBuild_LimitsAllowExactCap(t *testing.T) {
	t.Parallel()

	req := poloniumRequest()
	req.Supercell = &[3]int{10, 10, 10}
	resp, err := NewBuilder(Limits{MaxAtoms: 1000}).Build(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Atoms.Positions, 1000)
}

func TestBuild_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(Limits{}).Build(ctx, poloniumRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_Idempotent(t *testing.T) {
	t.Parallel()

	req := poloniumRequest()
	req.Planes = []Plane{{H: 1, K: 1, L: 0}}
	b := NewBuilder(Limits{})

	first, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	second, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated build differs (-first +second):\n%s", diff)
	}

	j1, err := json.Marshal(first)
	require.NoError(t, err)
	j2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(j1), string(j2))
}

func TestHash_DefaultsAreCanonical(t *testing.T) {
	t.Parallel()

	explicit := poloniumRequest()
	explicit.Reciprocal = &ReciprocalParams{GMax: f64(DefaultGMax)}

	implicit := poloniumRequest()
	implicit.Supercell = nil
	implicit.Reciprocal = nil
	implicit.Planes = nil

	h1, err := Hash(explicit)
	require.NoError(t, err)
	h2, err := Hash(implicit)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := poloniumRequest()
	other.Lattice.A = 3.1
	h3, err := Hash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestRequest_DecodesWireFormat(t *testing.T) {
	t.Parallel()

	body := `{"lattice":{"kind":"custom","a":1,"A":[[2,0,0],[0,2,0],[0,0,2]]},
		"basis":[{"element":"Si","frac":[0.25,0.25,0.25],"magmom":0.5}],
		"supercell":[2,2,2],"reciprocal":{"gMax":4},"planes":[{"h":1,"k":1,"l":1,"offset":0.3}]}`
	var req Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, 1.0, req.Lattice.A)
	require.NotNil(t, req.Lattice.Basis)
	assert.Equal(t, 2.0, req.Lattice.Basis[1][1])
	assert.Equal(t, [3]int{2, 2, 2}, req.SupercellValue())
	assert.Equal(t, 4.0, req.GMaxValue())
	require.NotNil(t, req.Basis[0].Magmom)
	assert.Equal(t, 0.5, *req.Basis[0].Magmom)
}
