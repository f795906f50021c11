package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/ironshare/api"
	"github.com/jmcleod/ironshare/vault"
)

type serverConfig struct {
	Port           int
	TLSCert        string
	TLSKey         string
	SweepInterval  time.Duration
	TrustedProxies []string
}

var serverCfg serverConfig

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ironshare HTTP server",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().IntVar(&serverCfg.Port, "port", envInt("IRONSHARE_PORT", 8080), "port to listen on")
	serverCmd.Flags().StringVar(&serverCfg.TLSCert, "tls-cert", envString("IRONSHARE_TLS_CERT", ""), "path to TLS certificate file")
	serverCmd.Flags().StringVar(&serverCfg.TLSKey, "tls-key", envString("IRONSHARE_TLS_KEY", ""), "path to TLS private key file")
	serverCmd.Flags().DurationVar(&serverCfg.SweepInterval, "sweep-interval", envDuration("IRONSHARE_SWEEP_INTERVAL", vault.DefaultSweepInterval), "interval between expiry sweeps")
	serverCmd.Flags().StringSliceVar(&serverCfg.TrustedProxies, "trusted-proxies", envList("IRONSHARE_TRUSTED_PROXIES"), "CIDRs whose X-Forwarded-For headers are honoured")
	rootCmd.AddCommand(serverCmd)
}

func (c serverConfig) validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("--port %d out of range", c.Port))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		errs = append(errs, errors.New("--tls-cert and --tls-key must be set together"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("--sweep-interval must be positive"))
	}
	return errors.Join(errs...)
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := serverCfg.validate(); err != nil {
		return err
	}
	logger := newLogger(storageCfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, repo, err := openVault(ctx, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	proxies, err := api.WithTrustedProxies(serverCfg.TrustedProxies)
	if err != nil {
		return err
	}
	a := api.New(v,
		api.WithLogger(logger),
		api.WithAlertFunc(func(e api.AlertEvent) {
			logger.Warn("security alert",
				slog.String("type", string(e.Type)),
				slog.Int("count", e.Count),
				slog.Int("threshold", e.Threshold),
				slog.String("message", e.Message))
		}),
		proxies,
	)

	sweeper := v.NewSweeper(serverCfg.SweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()
	go sweepRateLimits(ctx, a, serverCfg.SweepInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", serverCfg.Port),
		Handler:           newRouter(a, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	printBanner(cmd.OutOrStdout())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("storage", storageCfg.Storage),
			slog.Bool("tls", serverCfg.TLSCert != ""))
		var err error
		if serverCfg.TLSCert != "" {
			err = srv.ListenAndServeTLS(serverCfg.TLSCert, serverCfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newRouter(a *api.API, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(api.SecurityHeaders)

	r.Get("/health", api.Health)
	r.Mount("/api/v1", a.Router())
	return r
}

// requestLogger writes one access log line per request. Bodies and headers
// are never logged.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

func sweepRateLimits(ctx context.Context, a *api.API, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.SweepRateLimits()
		}
	}
}
