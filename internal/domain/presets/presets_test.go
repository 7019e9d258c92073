package presets

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
)

func TestDefault_Parses(t *testing.T) {
	t.Parallel()
	c, err := Default()
	require.NoError(t, err)
	assert.Len(t, c.Lattices, 5)
	assert.Len(t, c.KPaths, 3)

	po, ok := c.Lattice("Po")
	require.True(t, ok)
	assert.Equal(t, 3.0, po.A)

	mg, ok := c.Lattice("Mg")
	require.True(t, ok)
	require.NotNil(t, mg.C)
	assert.Equal(t, 5.21, *mg.C)

	_, ok = c.Lattice("Unobtainium")
	assert.False(t, ok)
}

func TestLatticePresets_Build(t *testing.T) {
	t.Parallel()
	c, err := Default()
	require.NoError(t, err)
	b := crystal.NewBuilder(crystal.Limits{})
	for _, l := range c.Lattices {
		l := l
		t.Run(l.Name, func(t *testing.T) {
			t.Parallel()
			resp, err := b.Build(context.Background(), l.Request([3]int{2, 2, 2}))
			require.NoError(t, err)
			assert.Len(t, resp.Atoms.Elements, 8*len(l.Basis))
			assert.NotEmpty(t, resp.Recip.GPoints)
		})
	}
}

func TestKPathPresets_Solve(t *testing.T) {
	t.Parallel()
	c, err := Default()
	require.NoError(t, err)
	s := tb.NewSolver(tb.Limits{})
	for _, lat := range []tb.Lattice{tb.Chain1D, tb.Square2D, tb.Honeycomb2D} {
		p, ok := c.KPathFor(lat)
		require.True(t, ok, lat)
		off := false
		resp, err := s.Solve(context.Background(), tb.Request{
			Model: tb.Model{Lattice: lat, Params: tb.Params{T: 1}},
			KPath: p.Path(20),
			DOS:   &tb.DOSParams{Enabled: &off},
		})
		require.NoError(t, err, lat)
		assert.Len(t, resp.Labels, len(p.Points))
	}
}

func TestHoneycombPreset_KIsDiracPoint(t *testing.T) {
	t.Parallel()
	c, err := Default()
	require.NoError(t, err)
	p, ok := c.KPathFor(tb.Honeycomb2D)
	require.True(t, ok)
	k := p.Points[1].K
	assert.InDelta(t, 2*math.Pi/3, k[0], 1e-15)
	assert.InDelta(t, -2*math.Pi/(3*math.Sqrt(3)), k[1], 1e-15)

	off := false
	resp, err := tb.NewSolver(tb.Limits{}).Solve(context.Background(), tb.Request{
		Model: tb.Model{Lattice: tb.Honeycomb2D, Params: tb.Params{T: 2.7}},
		KPath: p.Path(10),
		DOS:   &tb.DOSParams{Enabled: &off},
	})
	require.NoError(t, err)
	at := resp.Labels[1].AtIndex
	assert.InDelta(t, resp.Bands[0][at], resp.Bands[1][at], 1e-9)
}

func TestParse_RejectsDuplicatesAndUnknownKinds(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("lattices:\n  - {name: X, kind: sc, a: 1}\n  - {name: X, kind: sc, a: 2}\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("lattices:\n  - {name: Y, kind: rhombohedral, a: 1}\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("lattices: [unterminated"))
	assert.Error(t, err)
}
