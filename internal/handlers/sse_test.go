package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-dashboard/internal/models"
)

func sseRequest(target, signals string) *http.Request {
	if signals != "" {
		target += "?datastar=" + url.QueryEscape(signals)
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestRenderTables(t *testing.T) {
	rows := []models.PerformanceRow{{
		Market:    "CA",
		SKU:       "Widget",
		Category:  models.CategoryCashCow,
		Rationale: "revenue <high>",
		Metrics:   models.MetricSet{TotalRevenue: 12345.5, SalesConsistency: 0.75},
	}}

	html, err := render(performanceTableTemplate, templateData{Data: rows, MaxRows: maxTableRows})
	require.NoError(t, err)

	for _, want := range []string{
		`<div id="performance-content">`,
		"<th>Category</th>",
		"Widget",
		`class="category-badge cash-cow"`,
		"$12,345.50",
		"75%",
		"revenue &lt;high&gt;",
	} {
		assert.Contains(t, html, want)
	}
}

func TestLimited(t *testing.T) {
	rows := make([]int, maxTableRows+5)
	assert.Len(t, limited(rows), maxTableRows)
	assert.Len(t, limited(rows[:3]), 3)
}

func TestSSEHandlers(t *testing.T) {
	h := NewSSEHandlers(createTestAnalytics(t), testLogger())

	tests := []struct {
		name    string
		path    string
		handler http.HandlerFunc
		want    []string
	}{
		{"overview", "/sse/overview", h.HandleOverview, []string{"datastar-patch-signals", "marketUnits", "trendData"}},
		{"skus", "/sse/skus", h.HandleSkus, []string{"skuDistribution", "skus-content", "Gadget"}},
		{"performance", "/sse/performance", h.HandlePerformance, []string{"datastar-patch-elements", "performance-content", "Widget"}},
		{"health", "/sse/health", h.HandleInventoryHealth, []string{"health-content", "Overstocked"}},
		{"opportunities", "/sse/opportunities", h.HandleOpportunities, []string{"opportunities-content", "Overstocked"}},
		{"concentration", "/sse/concentration", h.HandleConcentration, []string{"concentrationCurve", "concentration-content"}},
		{"refresh all", "/sse/refresh-all", h.HandleRefreshAll, []string{"performance-content", "health-content", "opportunities-content", "concentration-content", "categoryData", "trendData"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, sseRequest(tt.path, `{"filters":{"market":"CA"}}`))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
			body := rec.Body.String()
			for _, want := range tt.want {
				assert.Contains(t, body, want)
			}
			assert.NotContains(t, body, "error-banner")
		})
	}
}

func TestSSEFiltersFromSignals(t *testing.T) {
	h := NewSSEHandlers(createTestAnalytics(t), testLogger())

	rec := httptest.NewRecorder()
	h.HandlePerformance(rec, sseRequest("/sse/performance", `{"filters":{"sku":"Gadget"}}`))

	body := rec.Body.String()
	assert.Contains(t, body, "Gadget")
	assert.NotContains(t, body, "Widget")
}

func TestSSEReportsErrors(t *testing.T) {
	h := NewSSEHandlers(createTestAnalytics(t), testLogger())

	rec := httptest.NewRecorder()
	h.HandleOpportunities(rec, sseRequest("/sse/opportunities", `{"filters":{"window":4}}`))
	assert.Equal(t, http.StatusOK, rec.Code, "the stream has already started")
	body := rec.Body.String()
	assert.Contains(t, body, "error-banner")
	assert.Contains(t, body, "invalid filters")

	rec = httptest.NewRecorder()
	h.HandlePerformance(rec, sseRequest("/sse/performance", `{"filters":`))
	assert.True(t, strings.Contains(rec.Body.String(), "invalid datastar signals"))
}
