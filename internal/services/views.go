package services

import (
	"cmp"
	"slices"

	"inventory-dashboard/internal/aggregate"
	"inventory-dashboard/internal/classify"
	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/thresholds"
)

type MarketView struct {
	Totals       []models.MarketTotal       `json:"totals"`
	Monthly      []models.MonthlyPoint      `json:"monthly"`
	Distribution []models.DistributionSlice `json:"distribution"`
	// Price is the average price trend; only set on the dollars view.
	Price []models.MonthlyPoint `json:"price,omitempty"`
}

type SkuView struct {
	Rows         []models.SkuTotal          `json:"rows"`
	Top          []models.SkuTotal          `json:"top"`
	Distribution []models.DistributionSlice `json:"distribution"`
}

type CategorySummary struct {
	Performance   []models.CategoryCount `json:"performance"`
	Health        []models.CategoryCount `json:"health"`
	Opportunities []models.CategoryCount `json:"opportunities"`
	Impacts       []models.CategoryCount `json:"impacts"`
}

type Options struct {
	Markets          []string                 `json:"markets"`
	SKUs             []string                 `json:"skus"`
	Periods          []string                 `json:"periods"`
	Windows          []int                    `json:"windows"`
	OpportunityTypes []models.OpportunityType `json:"opportunity_types"`
	Impacts          []models.Impact          `json:"impacts"`
}

func marketView(s scope, recs []models.MarketRecord) MarketView {
	recs = s.withMarketInventory(s.marketRecords(recs))
	totals := aggregate.MarketTotals(recs, s.periods)

	groups := make([]aggregate.Group, len(totals))
	for i, t := range totals {
		groups[i] = aggregate.Group{Key: t.Market, Total: t.Total, Count: 1}
	}

	return MarketView{
		Totals:       totals,
		Monthly:      aggregate.MonthlySeries(recs, s.periods),
		Distribution: aggregate.Distribution(groups),
	}
}

func (a *Analytics) MarketUnits(f models.Filters) (MarketView, error) {
	s, err := a.resolve(f)
	if err != nil {
		return MarketView{}, err
	}
	return marketView(s, s.ds.MarketUnits), nil
}

func (a *Analytics) MarketDollars(f models.Filters) (MarketView, error) {
	s, err := a.resolve(f)
	if err != nil {
		return MarketView{}, err
	}
	v := marketView(s, s.ds.MarketDollars)
	v.Price = aggregate.MonthlySeries(s.marketRecords(s.ds.MarketPrice), s.periods)
	return v, nil
}

func skuView(s scope, recs []models.SkuRecord) SkuView {
	rows := aggregate.SkuTotals(s.skuRecords(recs), s.periods)
	return SkuView{
		Rows:         rows,
		Top:          aggregate.TopN(rows, aggregate.DefaultTopN, func(r models.SkuTotal) float64 { return r.Total }),
		Distribution: aggregate.SkuMarketDistribution(rows),
	}
}

func (a *Analytics) SkuUnits(f models.Filters) (SkuView, error) {
	s, err := a.resolve(f)
	if err != nil {
		return SkuView{}, err
	}
	return skuView(s, s.ds.SkuUnits), nil
}

func (a *Analytics) SkuDollars(f models.Filters) (SkuView, error) {
	s, err := a.resolve(f)
	if err != nil {
		return SkuView{}, err
	}
	return skuView(s, s.ds.SkuDollars), nil
}

// MonthlyTrend sums units and revenue across the selected markets for each
// selected period.
func (a *Analytics) MonthlyTrend(f models.Filters) ([]models.MonthlyPoint, error) {
	s, err := a.resolve(f)
	if err != nil {
		return nil, err
	}

	units := s.marketRecords(s.ds.MarketUnits)
	revenue := s.marketRecords(s.ds.MarketDollars)

	out := make([]models.MonthlyPoint, len(s.periods))
	for i, p := range s.periods {
		var u, r float64
		for _, rec := range units {
			u += rec.Values[p]
		}
		for _, rec := range revenue {
			r += rec.Values[p]
		}
		out[i] = models.MonthlyPoint{
			Period: p.Name(),
			Values: map[string]float64{"units": u, "revenue": r},
		}
	}
	return out, nil
}

func performance(s scope, es []entity) []models.PerformanceRow {
	ms := snapshots(es)
	baselines := thresholds.ByMarket(ms, thresholds.PopulationTotalRevenue)

	var visible []models.MetricSet
	for _, m := range ms {
		if s.visible(m) {
			visible = append(visible, m)
		}
	}
	rows := classify.PerformanceAll(visible, baselines)
	slices.SortStableFunc(rows, func(a, b models.PerformanceRow) int {
		return cmp.Compare(b.Metrics.TotalRevenue, a.Metrics.TotalRevenue)
	})
	return rows
}

func (a *Analytics) Performance(f models.Filters) ([]models.PerformanceRow, error) {
	s, err := a.resolve(f)
	if err != nil {
		return nil, err
	}
	return performance(s, s.skuEntities()), nil
}

func health(s scope, es []entity) []models.HealthRow {
	var ms []models.MetricSet
	for _, e := range es {
		if s.visible(e.metrics) && s.stocked(e.metrics) {
			ms = append(ms, e.metrics)
		}
	}
	rows := classify.InventoryHealthAll(ms)
	slices.SortStableFunc(rows, func(a, b models.HealthRow) int {
		return cmp.Compare(b.Metrics.MonthsOnHand, a.Metrics.MonthsOnHand)
	})
	return rows
}

func (a *Analytics) InventoryHealth(f models.Filters) ([]models.HealthRow, error) {
	s, err := a.resolve(f)
	if err != nil {
		return nil, err
	}
	return health(s, s.skuEntities()), nil
}

var impactRank = map[models.Impact]int{
	models.ImpactHigh:   0,
	models.ImpactMedium: 1,
	models.ImpactLow:    2,
}

func opportunities(s scope, es []entity) []models.Opportunity {
	ms := snapshots(es)
	baselines := thresholds.ByMarket(ms, thresholds.PopulationRecentSales)
	averages := classify.MarketMonthlyAverages(ms)

	out := make([]models.Opportunity, 0)
	for _, e := range es {
		m := e.metrics
		if !s.visible(m) || !s.stocked(m) {
			continue
		}
		base, ok := baselines.Lookup(m.Market)
		if !ok {
			continue
		}

		in := classify.NewOpportunityInput(m, e.units, e.revenue, s.window, base, averages[m.Market])
		for _, o := range classify.DetectOpportunities(in) {
			if s.filters.WantsType(o.Type) && s.filters.WantsImpact(o.Impact) {
				out = append(out, o)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b models.Opportunity) int {
		if c := cmp.Compare(impactRank[a.Impact], impactRank[b.Impact]); c != 0 {
			return c
		}
		return cmp.Compare(b.Value, a.Value)
	})
	return out
}

func (a *Analytics) Opportunities(f models.Filters) ([]models.Opportunity, error) {
	s, err := a.resolve(f)
	if err != nil {
		return nil, err
	}
	return opportunities(s, s.skuEntities()), nil
}

func concentration(s scope, es []entity) models.ConcentrationResult {
	var ents []aggregate.Entity
	for _, e := range es {
		if !s.visible(e.metrics) {
			continue
		}
		ents = append(ents, aggregate.Entity{
			Name:    e.metrics.Market + " / " + e.metrics.SKU,
			Revenue: e.metrics.TotalRevenue,
			Units:   e.metrics.TotalSales,
		})
	}
	return aggregate.Concentration(ents)
}

// Concentration is the 80/20 analysis over SKU revenue.
func (a *Analytics) Concentration(f models.Filters) (models.ConcentrationResult, error) {
	s, err := a.resolve(f)
	if err != nil {
		return models.ConcentrationResult{}, err
	}
	return concentration(s, s.skuEntities()), nil
}

func strs[T ~string](vs ...T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func categoryCounts(s scope, es []entity) CategorySummary {
	perf := performance(s, es)
	hl := health(s, es)
	opps := opportunities(s, es)

	return CategorySummary{
		Performance: aggregate.Tally(perf, func(r models.PerformanceRow) string { return string(r.Category) },
			strs(models.CategoryStar, models.CategoryCashCow, models.CategoryQuestion, models.CategorySteadyLow, models.CategoryDog)...),
		Health: aggregate.Tally(hl, func(r models.HealthRow) string { return string(r.Status) },
			strs(models.HealthOverstocked, models.HealthModeratelyHigh, models.HealthUnderstocked, models.HealthBackorder, models.HealthHealthy)...),
		Opportunities: aggregate.Tally(opps, func(o models.Opportunity) string { return string(o.Type) },
			strs(models.OpportunityTypes...)...),
		Impacts: aggregate.Tally(opps, func(o models.Opportunity) string { return string(o.Impact) },
			strs(models.ImpactHigh, models.ImpactMedium, models.ImpactLow)...),
	}
}

func (a *Analytics) CategoryCounts(f models.Filters) (CategorySummary, error) {
	s, err := a.resolve(f)
	if err != nil {
		return CategorySummary{}, err
	}
	return categoryCounts(s, s.skuEntities()), nil
}

// Options lists the values the filter controls may offer.
func (a *Analytics) Options() Options {
	ds := a.snapshot()
	return Options{
		Markets:          aggregate.Distinct(ds.MarketUnits, func(r models.MarketRecord) string { return r.Market }),
		SKUs:             aggregate.Distinct(ds.SkuUnits, func(r models.SkuRecord) string { return r.SKU }),
		Periods:          ds.Calendar.Names(),
		Windows:          slices.Clone(metrics.WindowLengths),
		OpportunityTypes: slices.Clone(models.OpportunityTypes),
		Impacts:          []models.Impact{models.ImpactHigh, models.ImpactMedium, models.ImpactLow},
	}
}
