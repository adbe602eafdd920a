package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with
// the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope: a short reason under
// "detail" and nothing else.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, model.ErrorResponse{Detail: detail})
}

// maxJSONBody bounds request bodies on the management endpoints. The
// inference endpoints carry their own, larger configurable limit.
const maxJSONBody = 1 << 20 // 1MB

// readJSON decodes the request body as JSON into v. Unknown fields are
// rejected so malformed payloads fail loudly instead of being silently
// dropped. The body is size-capped and closed after decoding.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeServiceError translates the service failure taxonomy into HTTP
// responses. Forbidden deliberately renders as 404: a caller probing
// someone else's key ids learns nothing. Unavailable renders as 503
// with no internal detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Invalid credentials.")
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusNotFound, "API key not found.")
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "The service is temporarily unavailable. Please retry.")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error.")
	}
}
