package handlers

import (
	"net/http"

	"github.com/matiasleandrokruk/solidstate/internal/domain/presets"
	"github.com/matiasleandrokruk/solidstate/internal/domain/tb"
)

// PresetHandler serves the built-in preset catalog.
type PresetHandler struct {
	catalog *presets.Catalog
}

// NewPresetHandler creates a PresetHandler.
func NewPresetHandler(catalog *presets.Catalog) *PresetHandler {
	return &PresetHandler{catalog: catalog}
}

// Lattices handles GET /api/presets/lattices
func (h *PresetHandler) Lattices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.catalog.Lattices})
}

// KPaths handles GET /api/presets/kpaths, optionally filtered by ?lattice=.
func (h *PresetHandler) KPaths(w http.ResponseWriter, r *http.Request) {
	lat := tb.Lattice(r.URL.Query().Get("lattice"))
	if lat == "" {
		writeJSON(w, http.StatusOK, map[string]any{"data": h.catalog.KPaths})
		return
	}
	out := []presets.KPath{}
	for _, p := range h.catalog.KPaths {
		if p.Lattice == lat {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}
