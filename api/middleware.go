package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/ironshare/vault"
)

type contextKey int

const sessionKey contextKey = iota

const sessionCookieName = "ironshare_session"

// requestSession is the authenticated session attached to a request. The
// token is needed to recover the master secret; the ID is what gets logged.
type requestSession struct {
	Token string
	ID    string
}

// AuthMiddleware resolves the session token from the session cookie or an
// Authorization bearer header and rejects requests without a usable session.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := a.vault.SessionID(r.Context(), token)
		if errors.Is(err, vault.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if err != nil {
			a.writeInternalError(w, r, "failed to load session", err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, requestSession{Token: token, ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenFromRequest returns the bearer token if present, otherwise the
// session cookie value.
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func sessionFromContext(ctx context.Context) (requestSession, bool) {
	s, ok := ctx.Value(sessionKey).(requestSession)
	return s, ok
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
