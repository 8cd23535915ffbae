package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"inventory-dashboard/internal/config"
	"inventory-dashboard/internal/middleware"
	"inventory-dashboard/internal/observability"
	"inventory-dashboard/internal/server"
	"inventory-dashboard/internal/services"
	"inventory-dashboard/internal/ui/templates"
)

const (
	renderTimeout    = 10 * time.Second
	workbookTimeout  = 30 * time.Second
	pageCacheControl = "no-cache"
)

func dashboardHandler(analytics *services.Analytics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Cache-Control", pageCacheControl)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(analytics.Options()).Render(ctx, w); err != nil {
			logger.Error("render dashboard", "error", err)
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// newHandler wires the route table behind the middleware chain. Metrics sits
// innermost so it sees the pattern the mux matched.
func newHandler(cfg *config.Config, analytics *services.Analytics, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analytics, logger,
		&server.TemplateHandlers{Dashboard: dashboardHandler(analytics, logger)},
		server.Options{MaxUploadBytes: cfg.MaxUploadBytes(), Metrics: metrics},
	)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	return middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.Metrics(metrics),
	)(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"workbook", cfg.Workbook.Path,
	)

	shutdownTracing, err := observability.InitTracing(cfg.Tracing, os.Stdout)
	if err != nil {
		logger.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}

	layout, err := config.LoadLayout(cfg.Workbook.LayoutFile)
	if err != nil {
		logger.Error("failed to load workbook layout", "error", err, "file", cfg.Workbook.LayoutFile)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	analytics, err := services.NewAnalytics(layout,
		services.WithLogger(logger),
		services.WithCacheDir(cfg.Workbook.CacheDir),
		services.WithRecorder(metrics),
	)
	if err != nil {
		logger.Error("failed to create analytics engine", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), workbookTimeout)
	start := time.Now()
	if err := analytics.LoadWorkbook(ctx, cfg.Workbook.Path); err != nil {
		// The dashboard still serves uploads without an initial workbook.
		logger.Warn("initial workbook not loaded", "error", err, "path", cfg.Workbook.Path)
	} else {
		logger.Info("workbook loaded", "duration", time.Since(start), "records", analytics.Dataset().RecordCount())
	}
	cancel()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, analytics, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	if err := gracefulServer.ListenAndServe(context.Background()); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
