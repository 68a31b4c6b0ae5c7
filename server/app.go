// Package server assembles the WasteWise HTTP server from configuration.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"wastewise/analytics"
	"wastewise/api/httpapi"
	"wastewise/config"
	"wastewise/engine"
	"wastewise/gamify"
	"wastewise/metrics"
	"wastewise/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Stats   *analytics.Metrics
	Service *engine.Service
	Handler http.Handler
	Server  *http.Server
	Metrics MetricsServer
}

// MetricsServer is the dedicated Prometheus listener. Server is nil when
// metrics are disabled or share the API listener.
type MetricsServer struct {
	Server *http.Server
}

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStats() *analytics.Metrics {
	return analytics.NewMetrics()
}

// provideService returns a wire cleanup; a failed final flush is already
// logged by the close func.
func provideService(ctx context.Context, cfg *config.Config, logger *slog.Logger, hub *realtime.Hub, stats *analytics.Metrics) (*engine.Service, func(), error) {
	svc, closeSvc, err := gamify.FromConfig(ctx, cfg, logger, hub, gamify.WithAnalytics(stats))
	if err != nil {
		return nil, nil, err
	}
	return svc, func() { _ = closeSvc() }, nil
}

func provideHandler(svc *engine.Service, hub *realtime.Hub, stats *analytics.Metrics, cfg *config.Config, logger *slog.Logger) http.Handler {
	var exposition http.Handler
	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		exposition = metrics.Handler(cfg.Metrics.CollectSystem)
	}
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		CORSOrigins:      cfg.Server.CORSOrigins,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitCleanup: cfg.Security.RateLimit.CleanupInterval,
		MaxImageBytes:    cfg.Server.MaxImageBytes,
		RequestTimeout:   cfg.Server.WriteTimeout,
		Stats:            stats,
		Metrics:          exposition,
		MetricsPath:      cfg.Metrics.Path,
		Logger:           logger,
	})
}

func provideMetricsServer(cfg *config.Config) MetricsServer {
	if !cfg.Metrics.Enabled || cfg.Metrics.Address == "" {
		return MetricsServer{}
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler(cfg.Metrics.CollectSystem))
	return MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

func provideServer(cfg *config.Config, handler http.Handler, hub *realtime.Hub) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	// hijacked websocket connections are not tracked by Shutdown
	srv.RegisterOnShutdown(hub.Close)
	return srv
}

// Run serves until ctx is done, then shuts down within the configured
// timeout. Progress flushing is left to the cleanup func from BuildApp.
func (a *App) Run(ctx context.Context) error {
	servers := []*http.Server{a.Server}
	if a.Metrics.Server != nil {
		servers = append(servers, a.Metrics.Server)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			a.Logger.Info("server listening", "address", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()
	}

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server", "timeout", a.Config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = err
		}
	}
	a.Logger.Info("server stopped")
	return runErr
}
