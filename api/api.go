// Package api exposes the vault over a JSON REST interface built on chi.
package api

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/ironshare/vault"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	vault          *vault.Vault
	ipLimiter      *ipRateLimiter
	globalLimiter  *globalRateLimiter
	audit          *auditLogger
	logger         *slog.Logger
	alertFn        AlertFunc
	trustedProxies []netip.Prefix
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events and internal
// errors. If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithAlertFunc installs a callback for login-failure spikes and repeated
// bulk deletions.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithTrustedProxies returns an Option that trusts proxy headers
// (X-Forwarded-For, Forwarded, X-Real-IP) only from peers in the given
// CIDRs. Bare IPs are treated as single-host prefixes.
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return func(a *API) {
		a.trustedProxies = prefixes
	}, nil
}

// New creates a new API instance over v.
func New(v *vault.Vault, opts ...Option) *API {
	a := &API{
		vault:         v,
		ipLimiter:     newIPRateLimiter(),
		globalLimiter: newGlobalRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(a.logger)
	a.audit.metrics = newMetricsCollector(a.alertFn)
	a.logger = a.logger.With(slog.String("component", "api"))
	return a
}

// Router returns a chi.Router with all API routes mounted. It is intended to
// be mounted at /api/v1.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(NoStore)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(a.CSRFMiddleware)

		r.Get("/setup", a.GetSetup)
		r.Post("/setup", a.Setup)
		r.Post("/auth/login", a.Login)
		r.Post("/auth/logout", a.Logout)
		r.Get("/auth/session", a.GetSession)

		r.Route("/entries", func(r chi.Router) {
			r.Use(a.AuthMiddleware)
			r.Post("/", a.CreateEntry)
			r.Get("/", a.ListEntries)
			r.Delete("/", a.DeleteEntries)
		})
	})

	return r
}

// SweepRateLimits drops stale login rate-limit state. The server calls it on
// the same schedule as the storage sweeper.
func (a *API) SweepRateLimits() {
	a.ipLimiter.sweep()
}
