// Package presets serves the built-in lattice and k-path presets embedded
// from presets.yaml.
package presets

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/matiasleandrokruk/solidstate/internal/domain/crystal"
	"github.com/matiasleandrokruk/solidstate/internal/domain/geom"
	"github.com/matiasleandrokruk/solidstate/internal/domain/lattice"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
)

//go:embed presets.yaml
var raw []byte

// Atom is one basis atom of a preset.
type Atom struct {
	Element string       `yaml:"element" json:"element"`
	Frac    geom.Vector3 `yaml:"frac" json:"frac"`
	Magmom  *float64     `yaml:"magmom,omitempty" json:"magmom,omitempty"`
}

// Lattice is a named crystal preset.
type Lattice struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description" json:"description"`
	Kind        lattice.Kind `yaml:"kind" json:"kind"`
	A           float64      `yaml:"a" json:"a"`
	C           *float64     `yaml:"c,omitempty" json:"c,omitempty"`
	Basis       []Atom       `yaml:"basis" json:"basis"`
}

// KPoint is a labeled path vertex.
type KPoint struct {
	Label string       `yaml:"label" json:"label"`
	K     geom.Vector3 `yaml:"k" json:"k"`
}

// KPath is a named high-symmetry path for one TB lattice.
type KPath struct {
	Name    string     `yaml:"name" json:"name"`
	Lattice tb.Lattice `yaml:"lattice" json:"lattice"`
	Points  []KPoint   `yaml:"points" json:"points"`
}

// Catalog is the parsed preset file.
type Catalog struct {
	Lattices []Lattice `yaml:"lattices" json:"lattices"`
	KPaths   []KPath   `yaml:"kpaths" json:"kpaths"`
}

var load = sync.OnceValues(func() (*Catalog, error) {
	return Parse(raw)
})

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	return load()
}

// Parse decodes a catalog and checks that names are unique.
func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("presets: parse: %w", err)
	}
	seen := map[string]bool{}
	for _, l := range c.Lattices {
		if seen["lattice/"+l.Name] {
			return nil, fmt.Errorf("presets: duplicate lattice %q", l.Name)
		}
		seen["lattice/"+l.Name] = true
		if !l.Kind.Valid() {
			return nil, fmt.Errorf("presets: lattice %q has unknown kind %q", l.Name, l.Kind)
		}
	}
	for _, p := range c.KPaths {
		if seen["kpath/"+p.Name] {
			return nil, fmt.Errorf("presets: duplicate k-path %q", p.Name)
		}
		seen["kpath/"+p.Name] = true
	}
	return &c, nil
}

// Lattice looks up a lattice preset by name.
func (c *Catalog) Lattice(name string) (Lattice, bool) {
	for _, l := range c.Lattices {
		if l.Name == name {
			return l, true
		}
	}
	return Lattice{}, false
}

// KPathFor returns the first path registered for lat.
func (c *Catalog) KPathFor(lat tb.Lattice) (KPath, bool) {
	for _, p := range c.KPaths {
		if p.Lattice == lat {
			return p, true
		}
	}
	return KPath{}, false
}

// Request turns the preset into a crystal build request.
func (l Lattice) Request(supercell [3]int) crystal.Request {
	basis := make([]crystal.BasisAtom, len(l.Basis))
	for i, a := range l.Basis {
		basis[i] = crystal.BasisAtom{Element: a.Element, Frac: a.Frac, Magmom: a.Magmom}
	}
	sc := supercell
	return crystal.Request{
		Lattice:   lattice.Params{Kind: l.Kind, A: l.A, C: l.C},
		Basis:     basis,
		Supercell: &sc,
		Planes:    []crystal.Plane{},
	}
}

// Path turns the preset into a TB k-path with nPerSegment samples per segment.
func (p KPath) Path(nPerSegment int) tb.KPath {
	pts := make([]tb.KPoint, len(p.Points))
	for i, v := range p.Points {
		pts[i] = tb.KPoint{Label: v.Label, K: v.K}
	}
	n := nPerSegment
	return tb.KPath{Points: pts, NPerSegment: &n}
}
