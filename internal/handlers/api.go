package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"inventory-dashboard/internal/errors"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/observability"
	"inventory-dashboard/internal/services"
)

const (
	uploadField    = "workbook"
	multipartMem   = 8 << 20
	workbookSuffix = ".xlsx"
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	maxUpload int64
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, maxUpload int64) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger.With("component", "api"),
		maxUpload: maxUpload,
	}
}

// query adapts a filtered engine query into a JSON endpoint. The query runs
// against a pinned snapshot and the response is tagged with that snapshot's
// dataset ID, so clients revalidate after an upload.
func query[T any](h *APIHandlers, run func(*services.Analytics, models.Filters) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := observability.GetRequestID(r.Context())

		f, err := ParseFilters(r.URL.Query())
		if err != nil {
			errors.WriteError(w, h.logger, err, requestID)
			return
		}

		pinned := h.analytics.Pinned()
		etag := fmt.Sprintf("%q", pinned.Dataset().ID)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		data, err := run(pinned, f)
		if err != nil {
			errors.WriteError(w, h.logger, err, requestID)
			return
		}

		errors.WriteSuccessWithHeaders(w, data, map[string]string{
			"Cache-Control": "no-cache",
			"ETag":          etag,
		})
	}
}

func (h *APIHandlers) HandleMarketUnits() http.HandlerFunc {
	return query(h, (*services.Analytics).MarketUnits)
}

func (h *APIHandlers) HandleMarketDollars() http.HandlerFunc {
	return query(h, (*services.Analytics).MarketDollars)
}

func (h *APIHandlers) HandleSkuUnits() http.HandlerFunc {
	return query(h, (*services.Analytics).SkuUnits)
}

func (h *APIHandlers) HandleSkuDollars() http.HandlerFunc {
	return query(h, (*services.Analytics).SkuDollars)
}

func (h *APIHandlers) HandleMonthlyTrend() http.HandlerFunc {
	return query(h, (*services.Analytics).MonthlyTrend)
}

func (h *APIHandlers) HandlePerformance() http.HandlerFunc {
	return query(h, (*services.Analytics).Performance)
}

func (h *APIHandlers) HandleInventoryHealth() http.HandlerFunc {
	return query(h, (*services.Analytics).InventoryHealth)
}

func (h *APIHandlers) HandleOpportunities() http.HandlerFunc {
	return query(h, (*services.Analytics).Opportunities)
}

func (h *APIHandlers) HandleConcentration() http.HandlerFunc {
	return query(h, (*services.Analytics).Concentration)
}

func (h *APIHandlers) HandleCategoryCounts() http.HandlerFunc {
	return query(h, (*services.Analytics).CategoryCounts)
}

func (h *APIHandlers) HandleMarketReports(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	f, err := ParseFilters(r.URL.Query())
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	reports, err := h.analytics.PrecomputeMarkets(r.Context(), f)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	errors.WriteSuccess(w, reports)
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Options())
}

// HandleUpload replaces the dataset with an uploaded workbook. The previous
// dataset stays in place when the upload fails to normalize.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(multipartMem); err != nil {
		errors.WriteError(w, h.logger, badUpload(err), requestID)
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "missing workbook file field"), requestID)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), workbookSuffix) {
		errors.WriteError(w, h.logger, errors.BadRequest("workbook must be an .xlsx file"), requestID)
		return
	}

	if err := h.analytics.LoadWorkbookReader(r.Context(), header.Filename, file); err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	h.logger.Info("workbook uploaded",
		"filename", header.Filename,
		"size", header.Size,
		"request_id", requestID,
	)
	errors.WriteSuccess(w, h.analytics.Stats())
}

func badUpload(err error) error {
	appErr := errors.FromError(err)
	if appErr.Code == errors.CodeInternal {
		return errors.BadRequestWrap(err, "invalid multipart upload")
	}
	return appErr
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ds := h.analytics.Dataset()

	status := "healthy"
	if ds.Empty() {
		status = "no_data"
	}

	errors.WriteSuccess(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"records":   ds.RecordCount(),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
