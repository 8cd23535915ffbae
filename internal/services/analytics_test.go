package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/normalize"
	"inventory-dashboard/internal/workbook/workbooktest"
)

var halfYear = []models.Period{
	{Month: time.January},
	{Month: time.February},
	{Month: time.March},
	{Month: time.April},
	{Month: time.May},
	{Month: time.June},
}

func series(values ...float64) models.Series {
	s := make(models.Series, len(values))
	for i, v := range values {
		s[halfYear[i]] = v
	}
	return s
}

func flat(v float64) models.Series {
	return series(v, v, v, v, v, v)
}

// testDataset has two markets:
//
//	CA/A  100 units/month, 1000 inventory (ten months on hand)
//	CA/B  10 units/month, 5 inventory (half a month)
//	CA/C  no sales, on backorder
//	WA/D  units triple in the second half of the window
func testDataset() *models.Dataset {
	return &models.Dataset{
		Source:   "fixture",
		Calendar: models.NewCalendar(halfYear...),
		MarketUnits: []models.MarketRecord{
			{Market: "CA", Values: flat(110)},
			{Market: "WA", Values: series(50, 50, 50, 150, 150, 150)},
		},
		MarketDollars: []models.MarketRecord{
			{Market: "CA", Values: flat(1100)},
			{Market: "WA", Values: series(500, 500, 500, 1500, 1500, 1500)},
		},
		MarketPrice: []models.MarketRecord{
			{Market: "CA", Values: flat(10)},
			{Market: "WA", Values: flat(10)},
		},
		MarketInventory: []models.MarketRecord{
			{Market: "CA", Inventory: 995, HasInventory: true, MonthsOnHand: 9, HasMonthsOnHand: true},
		},
		SkuUnits: []models.SkuRecord{
			{Market: "CA", SKU: "A", Values: flat(100)},
			{Market: "CA", SKU: "B", Values: flat(10)},
			{Market: "CA", SKU: "C", Values: flat(0)},
			{Market: "WA", SKU: "D", Values: series(50, 50, 50, 150, 150, 150)},
		},
		SkuDollars: []models.SkuRecord{
			{Market: "CA", SKU: "A", Values: flat(1000)},
			{Market: "CA", SKU: "B", Values: flat(100)},
			{Market: "WA", SKU: "D", Values: series(500, 500, 500, 1500, 1500, 1500)},
		},
		SkuInventory: []models.SkuRecord{
			{Market: "CA", SKU: "A", Inventory: 1000, HasInventory: true},
			{Market: "CA", SKU: "B", Inventory: 5, HasInventory: true},
			{Market: "CA", SKU: "C", Inventory: -5, HasInventory: true},
			{Market: "WA", SKU: "D", Inventory: 300, HasInventory: true},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAnalytics(t *testing.T) *Analytics {
	t.Helper()
	a, err := NewAnalytics(normalize.DefaultLayout(), WithLogger(quietLogger()), WithCacheDir(""))
	require.NoError(t, err)
	a.SetDataset(testDataset())
	return a
}

type recordedLoad struct {
	source  string
	records int
	err     error
}

type fakeRecorder struct {
	mu    sync.Mutex
	loads []recordedLoad
}

func (r *fakeRecorder) ObserveLoad(source string, records int, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, recordedLoad{source: source, records: records, err: err})
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loads)
}

func unitsLayout() normalize.Layout {
	l := normalize.DefaultLayout()
	l.Sheets = []normalize.Role{normalize.RoleMarketUnits, normalize.RoleSkuUnits}
	return l
}

func unitsSheets() []workbooktest.Sheet {
	return []workbooktest.Sheet{
		{Name: "Units", Rows: [][]any{
			{"Market", "January", "February", "Total"},
			{"CA", 10, 20, 30},
			{"WA", 5, 5, 10},
		}},
		{Name: "SKU Units", Rows: [][]any{
			{"Market", "SKU", "January", "February"},
			{"CA", "A", 7, 8},
			{"Total", "", 7, 8},
			{"WA", "B", 1, 2},
		}},
	}
}

func TestNewAnalytics(t *testing.T) {
	a, err := NewAnalytics(normalize.DefaultLayout())
	require.NoError(t, err)
	assert.True(t, a.Dataset().Empty())
	assert.Equal(t, defaultCacheDir, a.cacheDir)

	bad := normalize.DefaultLayout()
	bad.Sheets = nil
	_, err = NewAnalytics(bad)
	assert.ErrorIs(t, err, normalize.ErrInvalidLayout)
}

func TestSetDatasetAssignsIdentity(t *testing.T) {
	a := newTestAnalytics(t)
	ds := a.Dataset()
	assert.NotEmpty(t, ds.ID)
	assert.False(t, ds.LoadedAt.IsZero())

	a.SetDataset(&models.Dataset{ID: "fixed"})
	assert.Equal(t, "fixed", a.Dataset().ID)
}

func TestLoadWorkbook(t *testing.T) {
	path := workbooktest.Save(t, "sales.xlsx", unitsSheets()...)
	cacheDir := t.TempDir()
	rec := &fakeRecorder{}

	a, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(cacheDir), WithRecorder(rec))
	require.NoError(t, err)
	require.NoError(t, a.LoadWorkbook(context.Background(), path))

	ds := a.Dataset()
	assert.Equal(t, path, ds.Source)
	assert.NotEmpty(t, ds.ID)
	assert.Equal(t, []string{"January", "February"}, ds.Calendar.Names())
	assert.Equal(t, 4, ds.RecordCount(), "total row is dropped")
	require.Equal(t, 1, rec.count())
	assert.Equal(t, 4, rec.loads[0].records)
	assert.NoError(t, rec.loads[0].err)

	// A second service sharing the cache directory skips decoding.
	b, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(cacheDir), WithRecorder(rec))
	require.NoError(t, err)
	require.NoError(t, b.LoadWorkbook(context.Background(), path))

	assert.Equal(t, ds.ID, b.Dataset().ID, "dataset comes from the cache")
	assert.Equal(t, 1, rec.count(), "cache hits are not recorded as loads")
	assert.Equal(t, 4, b.Dataset().RecordCount())

	units, err := b.MarketUnits(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, units.Totals, 2)
	assert.Equal(t, 30.0, units.Totals[0].Total)
}

func TestLoadWorkbookCacheIsPerLayout(t *testing.T) {
	path := workbooktest.Save(t, "sales.xlsx", unitsSheets()...)
	cacheDir := t.TempDir()

	a, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(cacheDir))
	require.NoError(t, err)
	require.NoError(t, a.LoadWorkbook(context.Background(), path))

	sixSheets, err := NewAnalytics(normalize.DefaultLayout(), WithLogger(quietLogger()), WithCacheDir(cacheDir))
	require.NoError(t, err)
	err = sixSheets.LoadWorkbook(context.Background(), path)
	assert.ErrorIs(t, err, normalize.ErrSheetCount)
	assert.True(t, sixSheets.Dataset().Empty())

	renamed := unitsLayout()
	renamed.Columns.SKU = "Item"
	items, err := NewAnalytics(renamed, WithLogger(quietLogger()), WithCacheDir(cacheDir))
	require.NoError(t, err)
	assert.ErrorIs(t, items.LoadWorkbook(context.Background(), path), normalize.ErrMissingColumn)

	same, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(cacheDir))
	require.NoError(t, err)
	require.NoError(t, same.LoadWorkbook(context.Background(), path))
	assert.Equal(t, a.Dataset().ID, same.Dataset().ID, "an identical layout still hits the cache")
}

func TestLoadWorkbookErrors(t *testing.T) {
	rec := &fakeRecorder{}
	a, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(""), WithRecorder(rec))
	require.NoError(t, err)

	err = a.LoadWorkbook(context.Background(), "/does/not/exist.xlsx")
	assert.Error(t, err)

	sheets := append(unitsSheets(), workbooktest.Sheet{Name: "Extra", Rows: [][]any{{"Market"}}})
	path := workbooktest.Save(t, "extra.xlsx", sheets...)
	err = a.LoadWorkbook(context.Background(), path)
	assert.ErrorIs(t, err, normalize.ErrSheetCount)
	require.Equal(t, 1, rec.count())
	assert.ErrorIs(t, rec.loads[0].err, normalize.ErrSheetCount)

	assert.True(t, a.Dataset().Empty(), "failed load keeps the previous snapshot")
}

func TestLoadWorkbookReader(t *testing.T) {
	a, err := NewAnalytics(unitsLayout(), WithLogger(quietLogger()), WithCacheDir(""))
	require.NoError(t, err)

	data := workbooktest.Build(t, unitsSheets()...)
	require.NoError(t, a.LoadWorkbookReader(context.Background(), "upload.xlsx", bytes.NewReader(data)))

	ds := a.Dataset()
	assert.Equal(t, "upload.xlsx", ds.Source)
	assert.Equal(t, 4, ds.RecordCount())

	stats := a.Stats()
	assert.Equal(t, int64(1), stats["loads"])
	assert.Equal(t, "upload.xlsx", stats["source"])
	assert.Len(t, stats["sheets"], 2)
}

func TestInvalidFilters(t *testing.T) {
	a := newTestAnalytics(t)

	f := models.DefaultFilters()
	f.Window = 4
	_, err := a.Performance(f)
	assert.ErrorIs(t, err, ErrInvalidFilters)

	f = models.DefaultFilters()
	f.Periods = []string{"Smarch"}
	_, err = a.MarketUnits(f)
	assert.ErrorIs(t, err, models.ErrUnknownPeriod)

	f = models.DefaultFilters()
	f.Periods = []string{"December"}
	_, err = a.SkuUnits(f)
	assert.ErrorIs(t, err, models.ErrUnknownPeriod)
}

func TestMarketViews(t *testing.T) {
	a := newTestAnalytics(t)

	units, err := a.MarketUnits(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, units.Totals, 2)
	assert.Equal(t, "CA", units.Totals[0].Market)
	assert.Equal(t, 660.0, units.Totals[0].Total)
	assert.Equal(t, 995.0, units.Totals[0].Inventory, "filled from the inventory sheet")
	assert.Equal(t, 9.0, units.Totals[0].MonthsOnHand)
	assert.Len(t, units.Monthly, 6)
	assert.Len(t, units.Distribution, 2)
	assert.Nil(t, units.Price)

	f := models.DefaultFilters()
	f.Market = "WA"
	f.Periods = []string{"April", "May"}
	dollars, err := a.MarketDollars(f)
	require.NoError(t, err)
	require.Len(t, dollars.Totals, 1)
	assert.Equal(t, 3000.0, dollars.Totals[0].Total)
	require.Len(t, dollars.Price, 2)
	assert.Equal(t, "April", dollars.Price[0].Period)
	assert.Equal(t, 10.0, dollars.Price[0].Values["WA"])
}

func TestSkuViews(t *testing.T) {
	a := newTestAnalytics(t)

	f := models.DefaultFilters()
	f.SKU = "A"
	units, err := a.SkuUnits(f)
	require.NoError(t, err)
	require.Len(t, units.Rows, 1)
	assert.Equal(t, 600.0, units.Rows[0].Total)
	assert.Equal(t, 1000.0, units.Rows[0].Inventory, "joined from the SKU inventory sheet")

	dollars, err := a.SkuDollars(models.DefaultFilters())
	require.NoError(t, err)
	assert.Len(t, dollars.Rows, 3)
	assert.Len(t, dollars.Top, 3)
}

func TestMonthlyTrend(t *testing.T) {
	a := newTestAnalytics(t)

	points, err := a.MonthlyTrend(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, points, 6)
	assert.Equal(t, "January", points[0].Period)
	assert.Equal(t, 160.0, points[0].Values["units"])
	assert.Equal(t, 1600.0, points[0].Values["revenue"])
	assert.Equal(t, 260.0, points[5].Values["units"])
}

func TestPerformance(t *testing.T) {
	a := newTestAnalytics(t)

	rows, err := a.Performance(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	got := map[string]models.PerformanceCategory{}
	for _, r := range rows {
		got[r.Market+"/"+r.SKU] = r.Category
	}
	assert.Equal(t, map[string]models.PerformanceCategory{
		"CA/A": models.CategoryStar,
		"CA/B": models.CategorySteadyLow,
		"CA/C": models.CategoryDog,
		"WA/D": models.CategorySteadyLow,
	}, got)
	assert.Equal(t, "A", rows[0].SKU, "sorted by revenue")

	// The SKU filter narrows the rows but not the market baseline.
	f := models.DefaultFilters()
	f.SKU = "A"
	rows, err = a.Performance(f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.CategoryStar, rows[0].Category)
}

func TestInventoryHealth(t *testing.T) {
	a := newTestAnalytics(t)

	rows, err := a.InventoryHealth(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	statuses := make([]models.HealthStatus, len(rows))
	for i, r := range rows {
		statuses[i] = r.Status
	}
	assert.Equal(t, []models.HealthStatus{
		models.HealthOverstocked,
		models.HealthModeratelyHigh,
		models.HealthUnderstocked,
		models.HealthBackorder,
	}, statuses)
	assert.Equal(t, 10.0, rows[0].Metrics.MonthsOnHand)

	// Backorders pass the minimum inventory filter.
	f := models.DefaultFilters()
	f.MinInventory = 10
	rows, err = a.InventoryHealth(f)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestOpportunities(t *testing.T) {
	a := newTestAnalytics(t)

	opps, err := a.Opportunities(models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, opps, 2)

	assert.Equal(t, models.OpportunityOverstocked, opps[0].Type)
	assert.Equal(t, "A", opps[0].SKU)
	assert.Equal(t, models.ImpactHigh, opps[0].Impact)
	assert.InDelta(t, 10000, opps[0].Value, 1e-9)

	assert.Equal(t, models.OpportunityExpandMarket, opps[1].Type)
	assert.Equal(t, "D", opps[1].SKU)
	assert.Equal(t, models.ImpactHigh, opps[1].Impact)
	assert.InDelta(t, 1000, opps[1].Value, 1e-9)

	f := models.DefaultFilters()
	f.OpportunityTypes = []models.OpportunityType{models.OpportunityExpandMarket}
	opps, err = a.Opportunities(f)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "D", opps[0].SKU)

	f = models.DefaultFilters()
	f.Impacts = []models.Impact{models.ImpactLow}
	opps, err = a.Opportunities(f)
	require.NoError(t, err)
	assert.Empty(t, opps)

	// Three months only covers the second half of D's growth.
	f = models.DefaultFilters()
	f.Window = 3
	opps, err = a.Opportunities(f)
	require.NoError(t, err)
	for _, o := range opps {
		assert.NotEqual(t, models.OpportunityExpandMarket, o.Type)
	}
}

func TestConcentration(t *testing.T) {
	a := newTestAnalytics(t)

	res, err := a.Concentration(models.DefaultFilters())
	require.NoError(t, err)
	assert.Equal(t, 12600.0, res.TotalRevenue)
	assert.Equal(t, 3, res.ActiveEntities, "C sold nothing")
	assert.Equal(t, 2, res.EntitiesNeeded)
	assert.InDelta(t, 66.67, res.Percentage, 0.01)
	require.Len(t, res.Curve, 3)
	assert.Equal(t, "CA / A", res.Curve[0].Name)
	assert.Equal(t, "WA / D", res.Curve[1].Name)
}

func TestCategoryCounts(t *testing.T) {
	a := newTestAnalytics(t)

	sum, err := a.CategoryCounts(models.DefaultFilters())
	require.NoError(t, err)

	assert.Equal(t, []models.CategoryCount{
		{Label: "Star", Count: 1},
		{Label: "Cash Cow", Count: 0},
		{Label: "Question Mark", Count: 0},
		{Label: "Steady Low Performer", Count: 2},
		{Label: "Dog", Count: 1},
	}, sum.Performance)
	assert.Equal(t, []models.CategoryCount{
		{Label: "Overstocked", Count: 1},
		{Label: "Moderately High", Count: 1},
		{Label: "Understocked", Count: 1},
		{Label: "Backorder", Count: 1},
		{Label: "Healthy", Count: 0},
	}, sum.Health)
	assert.Equal(t, []models.CategoryCount{
		{Label: "High", Count: 2},
		{Label: "Medium", Count: 0},
		{Label: "Low", Count: 0},
	}, sum.Impacts)
}

func TestOptions(t *testing.T) {
	a := newTestAnalytics(t)

	opts := a.Options()
	assert.Equal(t, []string{"CA", "WA"}, opts.Markets)
	assert.Equal(t, []string{"A", "B", "C", "D"}, opts.SKUs)
	assert.Equal(t, []string{"January", "February", "March", "April", "May", "June"}, opts.Periods)
	assert.Equal(t, []int{3, 6, 9, 12}, opts.Windows)
	assert.Len(t, opts.OpportunityTypes, 4)
}

func TestPrecomputeMarkets(t *testing.T) {
	a := newTestAnalytics(t)

	reports, err := a.PrecomputeMarkets(context.Background(), models.DefaultFilters())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	ca := reports["CA"]
	assert.Len(t, ca.Performance, 3)
	assert.Len(t, ca.Health, 3)
	require.Len(t, ca.Opportunities, 1)
	assert.Equal(t, models.OpportunityOverstocked, ca.Opportunities[0].Type)

	wa := reports["WA"]
	require.Len(t, wa.Opportunities, 1)
	assert.Equal(t, models.OpportunityExpandMarket, wa.Opportunities[0].Type)
	assert.Equal(t, 1, wa.Concentration.ActiveEntities)

	// Each report matches the single-market query.
	f := models.DefaultFilters()
	f.Market = "CA"
	rows, err := a.Performance(f)
	require.NoError(t, err)
	assert.Equal(t, rows, ca.Performance)
}

func TestPrecomputeMarketsCancelled(t *testing.T) {
	a := newTestAnalytics(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.PrecomputeMarkets(ctx, models.DefaultFilters())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentQueriesDuringLoad(t *testing.T) {
	a := newTestAnalytics(t)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Opportunities(models.DefaultFilters())
			assert.NoError(t, err)
		}()
	}
	for range 4 {
		a.SetDataset(testDataset())
	}
	wg.Wait()
}

func BenchmarkOpportunities(b *testing.B) {
	a, err := NewAnalytics(normalize.DefaultLayout(), WithLogger(quietLogger()), WithCacheDir(""))
	require.NoError(b, err)
	a.SetDataset(testDataset())
	f := models.DefaultFilters()

	for b.Loop() {
		if _, err := a.Opportunities(f); err != nil {
			b.Fatal(err)
		}
	}
}
