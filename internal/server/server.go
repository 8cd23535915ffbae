package server

import (
	"log/slog"
	"net/http"

	"inventory-dashboard/internal/handlers"
	"inventory-dashboard/internal/observability"
	"inventory-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	metrics     *observability.Metrics
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

type Options struct {
	MaxUploadBytes int64
	Metrics        *observability.Metrics
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers, opts Options) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		metrics:     opts.Metrics,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, opts.MaxUploadBytes),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/markets/units", s.apiHandlers.HandleMarketUnits())
	s.mux.HandleFunc("GET /api/markets/dollars", s.apiHandlers.HandleMarketDollars())
	s.mux.HandleFunc("GET /api/markets/reports", s.apiHandlers.HandleMarketReports)
	s.mux.HandleFunc("GET /api/skus/units", s.apiHandlers.HandleSkuUnits())
	s.mux.HandleFunc("GET /api/skus/dollars", s.apiHandlers.HandleSkuDollars())
	s.mux.HandleFunc("GET /api/trend", s.apiHandlers.HandleMonthlyTrend())
	s.mux.HandleFunc("GET /api/performance", s.apiHandlers.HandlePerformance())
	s.mux.HandleFunc("GET /api/inventory-health", s.apiHandlers.HandleInventoryHealth())
	s.mux.HandleFunc("GET /api/opportunities", s.apiHandlers.HandleOpportunities())
	s.mux.HandleFunc("GET /api/concentration", s.apiHandlers.HandleConcentration())
	s.mux.HandleFunc("GET /api/categories", s.apiHandlers.HandleCategoryCounts())
	s.mux.HandleFunc("GET /api/options", s.apiHandlers.HandleOptions)
	s.mux.HandleFunc("POST /api/workbook", s.apiHandlers.HandleUpload)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/overview", s.sseHandlers.HandleOverview)
	s.mux.HandleFunc("GET /sse/skus", s.sseHandlers.HandleSkus)
	s.mux.HandleFunc("GET /sse/performance", s.sseHandlers.HandlePerformance)
	s.mux.HandleFunc("GET /sse/health", s.sseHandlers.HandleInventoryHealth)
	s.mux.HandleFunc("GET /sse/opportunities", s.sseHandlers.HandleOpportunities)
	s.mux.HandleFunc("GET /sse/concentration", s.sseHandlers.HandleConcentration)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
