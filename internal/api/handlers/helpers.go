// Shared response helpers: the JSON envelope and calcerr → status mapping.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/matiasleandrokruk/solidstate/internal/domain/calcerr"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is an
// ewald request carrying a full G list.
const maxBodyBytes = 32 << 20

// Error codes carried in the "error" field of every failure body.
const (
	codeInvalidJSON       = "invalid_json"
	codeInvalidInput      = string(calcerr.KindInvalidInput)
	codeDegenerateLattice = string(calcerr.KindDegenerateLattice)
	codeTimeout           = "timeout"
	codeCanceled          = "canceled"
	codeInternal          = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes the {error, details} envelope.
func writeError(w http.ResponseWriter, statusCode int, code, details string) {
	writeJSON(w, statusCode, ErrorResponse{Error: code, Details: details})
}

// decodeBody reads one JSON document into dst. Syntax errors and trailing
// garbage are invalid_json; a well-formed value of the wrong type is
// invalid_input naming the field.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeDecodeError(w, err)
		return false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "unexpected data after the JSON document")
		return false
	}
	return true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		writeError(w, http.StatusBadRequest, codeInvalidInput, fmt.Sprintf("%s: expected %s, got %s", field, typeErr.Type, typeErr.Value))
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, codeInvalidInput, fmt.Sprintf("body: exceeds %d bytes", maxErr.Limit))
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "empty body")
	default:
		writeError(w, http.StatusBadRequest, codeInvalidJSON, err.Error())
	}
}

// writeComputeError maps a facade error onto the transport contract.
// It returns false for unexpected errors so the caller can log them.
func writeComputeError(w http.ResponseWriter, err error) bool {
	if ce, ok := calcerr.As(err); ok {
		switch ce.Kind {
		case calcerr.KindInvalidInput:
			writeError(w, http.StatusBadRequest, codeInvalidInput, ce.Details())
			return true
		case calcerr.KindDegenerateLattice:
			writeError(w, http.StatusUnprocessableEntity, codeDegenerateLattice, ce.Details())
			return true
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "computation exceeded the request timeout")
		return true
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, codeCanceled, "request canceled")
		return true
	}
	writeError(w, http.StatusInternalServerError, codeInternal, "")
	return false
}
