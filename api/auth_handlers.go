package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/ironshare/vault"
)

// GetSetup handles GET /setup.
func (a *API) GetSetup(w http.ResponseWriter, r *http.Request) {
	configured, err := a.vault.IsConfigured(r.Context())
	if err != nil {
		a.writeInternalError(w, r, "failed to load setup state", err)
		return
	}
	writeJSON(w, http.StatusOK, SetupStatusResponse{Configured: configured})
}

// Setup handles POST /setup. It succeeds once per deployment.
func (a *API) Setup(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SetupRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}
	if err := a.vault.ConfigureMasterSecret(r.Context(), req.Secret); err != nil {
		if errors.Is(err, vault.ErrAlreadyConfigured) {
			a.audit.logFailure(AuditSetup, r, "already configured")
		}
		a.mapError(w, r, err)
		return
	}
	a.audit.log(AuditSetup, r)
	writeJSON(w, http.StatusCreated, SetupStatusResponse{Configured: true})
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := a.extractClientIP(r)

	// Check rate limits before any expensive work: global, then IP.
	if blocked, retryAfter := a.globalLimiter.check(); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "global rate limited")
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}

	sess, err := a.vault.Login(r.Context(), req.Secret)
	if errors.Is(err, vault.ErrAuthentication) {
		a.globalLimiter.recordFailure()
		a.ipLimiter.recordFailure(clientIP)
		a.audit.logFailure(AuditLoginFailure, r, "invalid secret",
			slog.String("client_ip", clientIP))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	a.ipLimiter.recordSuccess(clientIP)
	writeSessionCookie(w, r, sess.Token, sess.ExpiresAt)
	writeCSRFCookie(w, r, sess.ExpiresAt)
	a.audit.logSession(AuditLoginSuccess, r, sess.ID)
	writeJSON(w, http.StatusOK, LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// Logout handles POST /auth/logout. It always succeeds and clears cookies.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r); token != "" {
		sessionID, _ := a.vault.SessionID(r.Context(), token)
		if err := a.vault.Logout(r.Context(), token); err != nil {
			a.writeInternalError(w, r, "failed to end session", err)
			return
		}
		if sessionID != "" {
			a.audit.logSession(AuditLogout, r, sessionID)
		}
	}
	clearSessionCookie(w, r)
	clearCSRFCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /auth/session.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	valid, err := a.vault.VerifySession(r.Context(), tokenFromRequest(r))
	if err != nil {
		a.writeInternalError(w, r, "failed to load session", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Valid: valid})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
