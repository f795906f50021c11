package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/vault"
)

const (
	maxAuthBodySize  = 4 << 10
	maxEntryBodySize = 4 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs err and responds with a generic message so no
// internal detail reaches the client.
func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.ErrorContext(r.Context(), msg,
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, msg)
}

// mapError translates vault and crypto errors into HTTP responses.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrAlreadyConfigured):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, vault.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, vault.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, vault.ErrInvalidEntry),
		errors.Is(err, crypto.ErrSecretTooLong),
		errors.Is(err, crypto.ErrEmptySecret):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crypto.ErrIntegrity), errors.Is(err, crypto.ErrFormat):
		a.writeInternalError(w, r, "stored data failed verification", err)
	default:
		a.writeInternalError(w, r, "internal error", err)
	}
}

// decodeJSON reads a size-limited JSON body into a T, writing a 400 or 413
// response and returning false on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return v, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return v, false
	}
	return v, true
}
