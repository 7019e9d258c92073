package handlers

import (
	"net/http"

	"github.com/matiasleandrokruk/solidstate/internal/version"
)

// Version handles GET /version
func Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}
