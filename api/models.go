package api

import (
	"time"

	"github.com/jmcleod/ironshare/vault"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SetupStatusResponse is returned from GET /setup.
type SetupStatusResponse struct {
	Configured bool `json:"configured"`
}

// SetupRequest is the JSON body for POST /setup.
type SetupRequest struct {
	Secret string `json:"secret"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Secret string `json:"secret"`
}

// LoginResponse is returned from POST /auth/login. The token is also set as
// an HttpOnly cookie; API clients send it as a bearer token instead.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionResponse is returned from GET /auth/session.
type SessionResponse struct {
	Valid bool `json:"valid"`
}

// CreateEntryRequest is the JSON body for POST /entries.
type CreateEntryRequest = vault.EntryData

// EntryResponse describes a stored entry without its payload.
type EntryResponse = vault.EntryInfo

// ListEntriesResponse is returned from GET /entries.
type ListEntriesResponse struct {
	Entries []vault.Entry `json:"entries"`
}

// DeleteEntriesResponse is returned from DELETE /entries.
type DeleteEntriesResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
