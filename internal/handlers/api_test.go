package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/normalize"
	"inventory-dashboard/internal/services"
	"inventory-dashboard/internal/workbook/workbooktest"
)

var quarter = []models.Period{
	{Year: 2025, Month: time.January},
	{Year: 2025, Month: time.February},
	{Year: 2025, Month: time.March},
}

func series(values ...float64) models.Series {
	s := make(models.Series, len(values))
	for i, v := range values {
		s[quarter[i]] = v
	}
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLayout() normalize.Layout {
	l := normalize.DefaultLayout()
	l.Sheets = []normalize.Role{normalize.RoleSkuUnits, normalize.RoleSkuDollars}
	return l
}

// createTestAnalytics holds one overstocked SKU and one fast mover.
func createTestAnalytics(t *testing.T) *services.Analytics {
	t.Helper()
	a, err := services.NewAnalytics(testLayout(), services.WithLogger(testLogger()), services.WithCacheDir(""))
	require.NoError(t, err)

	a.SetDataset(&models.Dataset{
		Calendar: models.NewCalendar(quarter...),
		MarketUnits: []models.MarketRecord{
			{Market: "CA", Values: series(110, 110, 110)},
		},
		SkuUnits: []models.SkuRecord{
			{Market: "CA", SKU: "Widget", Values: series(10, 10, 10), Inventory: 500, HasInventory: true},
			{Market: "CA", SKU: "Gadget", Values: series(100, 100, 100), Inventory: 150, HasInventory: true},
		},
		SkuDollars: []models.SkuRecord{
			{Market: "CA", SKU: "Widget", Values: series(100, 100, 100)},
			{Market: "CA", SKU: "Gadget", Values: series(2000, 2000, 2000)},
		},
	})
	return a
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestParseFilters(t *testing.T) {
	q := url.Values{
		"market":        {"CA"},
		"periods":       {"January 2025, February 2025,"},
		"window":        {"3"},
		"min_inventory": {"12.5"},
		"types":         {"Overstocked,Expand Market"},
		"impacts":       {"High"},
	}

	f, err := ParseFilters(q)
	require.NoError(t, err)
	assert.Equal(t, "CA", f.Market)
	assert.Equal(t, models.AllSelector, f.SKU)
	assert.Equal(t, []string{"January 2025", "February 2025"}, f.Periods)
	assert.Equal(t, 3, f.Window)
	assert.Equal(t, 12.5, f.MinInventory)
	assert.Equal(t, []models.OpportunityType{models.OpportunityOverstocked, models.OpportunityExpandMarket}, f.OpportunityTypes)
	assert.Equal(t, []models.Impact{models.ImpactHigh}, f.Impacts)

	f, err = ParseFilters(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultFilters(), f)

	_, err = ParseFilters(url.Values{"window": {"six"}})
	assert.Error(t, err)
	_, err = ParseFilters(url.Values{"min_inventory": {"lots"}})
	assert.Error(t, err)
}

func TestQueryEndpoints(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  string
	}{
		{"market units", h.HandleMarketUnits(), "/api/markets/units"},
		{"market dollars", h.HandleMarketDollars(), "/api/markets/dollars"},
		{"sku units", h.HandleSkuUnits(), "/api/skus/units"},
		{"sku dollars", h.HandleSkuDollars(), "/api/skus/dollars?sku=Gadget"},
		{"trend", h.HandleMonthlyTrend(), "/api/trend"},
		{"performance", h.HandlePerformance(), "/api/performance"},
		{"inventory health", h.HandleInventoryHealth(), "/api/inventory-health?min_inventory=10"},
		{"opportunities", h.HandleOpportunities(), "/api/opportunities?types=Overstocked"},
		{"concentration", h.HandleConcentration(), "/api/concentration"},
		{"categories", h.HandleCategoryCounts(), "/api/categories?window=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
			assert.NotEmpty(t, rec.Header().Get("ETag"))

			env := decode(t, rec)
			assert.True(t, env.Success)
			assert.NotEqual(t, "null", string(env.Data))
		})
	}
}

func TestOpportunitiesEndpoint(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandleOpportunities()(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities?types=Overstocked", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var opps []models.Opportunity
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &opps))
	require.Len(t, opps, 1)
	assert.Equal(t, "Widget", opps[0].SKU)
	assert.Equal(t, models.OpportunityOverstocked, opps[0].Type)
}

func TestQueryNotModified(t *testing.T) {
	a := createTestAnalytics(t)
	h := NewAPIHandlers(a, testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandlePerformance()(rec, httptest.NewRequest(http.MethodGet, "/api/performance", nil))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/performance", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.HandlePerformance()(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestQueryTagsTheSnapshotItRead(t *testing.T) {
	a := createTestAnalytics(t)
	h := NewAPIHandlers(a, testLogger(), 1<<20)
	before := a.Dataset().ID

	handler := query(h, func(pinned *services.Analytics, f models.Filters) ([]models.PerformanceRow, error) {
		// An upload lands while the query is running.
		a.SetDataset(&models.Dataset{Calendar: models.NewCalendar(quarter...)})
		return pinned.Performance(f)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/performance", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotEqual(t, before, a.Dataset().ID)
	assert.Equal(t, fmt.Sprintf("%q", before), rec.Header().Get("ETag"))

	var rows []models.PerformanceRow
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &rows))
	assert.Len(t, rows, 2, "rows come from the pinned snapshot")
}

func TestPinnedIgnoresLaterLoads(t *testing.T) {
	a := createTestAnalytics(t)
	pinned := a.Pinned()

	a.SetDataset(&models.Dataset{})
	assert.True(t, a.Dataset().Empty())
	assert.Equal(t, 5, pinned.Dataset().RecordCount())
}

func TestQueryErrors(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	tests := []struct {
		target   string
		wantCode string
	}{
		{"/api/performance?window=abc", "BAD_REQUEST"},
		{"/api/performance?window=4", "VALIDATION_ERROR"},
		{"/api/performance?periods=Smarch", "VALIDATION_ERROR"},
		{"/api/performance?periods=April%202025", "VALIDATION_ERROR"},
		{"/api/opportunities?types=Windfall", "VALIDATION_ERROR"},
		{"/api/opportunities?min_inventory=-1", "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandlePerformance()(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decode(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestHandleOptions(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandleOptions(rec, httptest.NewRequest(http.MethodGet, "/api/options", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var opts services.Options
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &opts))
	assert.Equal(t, []string{"CA"}, opts.Markets)
	assert.Equal(t, []string{"Widget", "Gadget"}, opts.SKUs)
	assert.Equal(t, []string{"January 2025", "February 2025", "March 2025"}, opts.Periods)
}

func TestHandleMarketReports(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandleMarketReports(rec, httptest.NewRequest(http.MethodGet, "/api/markets/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var reports map[string]services.MarketReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &reports))
	require.Contains(t, reports, "CA")
	assert.Len(t, reports["CA"].Performance, 2)
}

func TestHandleHealth(t *testing.T) {
	h := NewAPIHandlers(createTestAnalytics(t), testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 5.0, body["records"])

	empty, err := services.NewAnalytics(testLayout(), services.WithCacheDir(""))
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	NewAPIHandlers(empty, testLogger(), 1<<20).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, "no_data", body["status"])
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/workbook", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func uploadWorkbook(t *testing.T) []byte {
	return workbooktest.Build(t,
		workbooktest.Sheet{Name: "SKU Units", Rows: [][]any{
			{"Market", "SKU", "April 2025", "May 2025"},
			{"OR", "Sprocket", 5, 6},
		}},
		workbooktest.Sheet{Name: "SKU Dollars", Rows: [][]any{
			{"Market", "SKU", "April 2025", "May 2025"},
			{"OR", "Sprocket", 50, 60},
		}},
	)
}

func TestHandleUpload(t *testing.T) {
	a := createTestAnalytics(t)
	h := NewAPIHandlers(a, testLogger(), 1<<20)

	rec := httptest.NewRecorder()
	h.HandleUpload(rec, uploadRequest(t, "workbook", "april.xlsx", uploadWorkbook(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ds := a.Dataset()
	assert.Equal(t, "april.xlsx", ds.Source)
	assert.Equal(t, []string{"April 2025", "May 2025"}, ds.Calendar.Names())

	var stats map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stats))
	assert.Equal(t, "april.xlsx", stats["source"])
}

func TestHandleUploadErrors(t *testing.T) {
	a := createTestAnalytics(t)
	before := a.Dataset().ID

	broken := workbooktest.Build(t, workbooktest.Sheet{Name: "Only", Rows: [][]any{{"Market"}, {"CA"}}})

	tests := []struct {
		name     string
		limit    int64
		req      *http.Request
		status   int
		wantCode string
	}{
		{"not multipart", 1 << 20, httptest.NewRequest(http.MethodPost, "/api/workbook", nil), http.StatusBadRequest, "BAD_REQUEST"},
		{"wrong field", 1 << 20, uploadRequest(t, "file", "a.xlsx", uploadWorkbook(t)), http.StatusBadRequest, "BAD_REQUEST"},
		{"wrong extension", 1 << 20, uploadRequest(t, "workbook", "a.csv", []byte("a,b")), http.StatusBadRequest, "BAD_REQUEST"},
		{"sheet count", 1 << 20, uploadRequest(t, "workbook", "a.xlsx", broken), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"too large", 10, uploadRequest(t, "workbook", "a.xlsx", uploadWorkbook(t)), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewAPIHandlers(a, testLogger(), tt.limit).HandleUpload(rec, tt.req)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}

	assert.Equal(t, before, a.Dataset().ID, "failed uploads keep the dataset")
}
