package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/storage"
	"github.com/jmcleod/ironshare/vault"
)

func TestMapError(t *testing.T) {
	a := &API{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}

	tests := []struct {
		err    error
		status int
	}{
		{vault.ErrAlreadyConfigured, http.StatusConflict},
		{vault.ErrAuthentication, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", vault.ErrInvalidSession), http.StatusUnauthorized},
		{fmt.Errorf("%w: title must not be empty", vault.ErrInvalidEntry), http.StatusBadRequest},
		{crypto.ErrSecretTooLong, http.StatusBadRequest},
		{crypto.ErrEmptySecret, http.StatusBadRequest},
		{fmt.Errorf("recovering session secret: %w", crypto.ErrIntegrity), http.StatusInternalServerError},
		{crypto.ErrFormat, http.StatusInternalServerError},
		{storage.ErrNotFound, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/entries", nil)
			a.mapError(w, r, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}

	t.Run("InternalDetailHidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/entries", nil)
		a.mapError(w, r, fmt.Errorf("pq: connection to 10.0.0.5 refused"))
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
	})
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	body := `{"secret":"` + strings.Repeat("a", maxAuthBodySize) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(body))
	_, ok := decodeJSON[SetupRequest](w, r, maxAuthBodySize)
	assert.False(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// Every route the router serves must be described in openapi.yaml.
func TestOpenAPICoversRoutes(t *testing.T) {
	a := &API{}
	doc := string(openapiSpec)
	skip := map[string]bool{"/openapi.yaml": true, "/docs*": true, "/redoc*": true}

	err := chi.Walk(a.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if skip[route] {
			return nil
		}
		route = strings.TrimSuffix(route, "/")
		pathIdx := strings.Index(doc, "\n  "+route+":\n")
		if !assert.GreaterOrEqual(t, pathIdx, 0, "route %s missing from openapi.yaml", route) {
			return nil
		}
		section := doc[pathIdx+1:]
		if next := strings.Index(section[2:], "\n  /"); next >= 0 {
			section = section[:next+2]
		}
		assert.Contains(t, section, "\n    "+strings.ToLower(method)+":", "%s %s missing from openapi.yaml", method, route)
		return nil
	})
	assert.NoError(t, err)
}
