package aggregate

import (
	"slices"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
)

// MarketTotals totals each market record over periods, sorted descending.
// Share is each market's percentage of the grand total.
func MarketTotals(recs []models.MarketRecord, periods []models.Period) []models.MarketTotal {
	out := make([]models.MarketTotal, len(recs))
	var grand float64
	for i, r := range recs {
		out[i] = models.MarketTotal{
			Market:       r.Market,
			Total:        r.Total(periods),
			Inventory:    r.Inventory,
			MonthsOnHand: r.MonthsOnHand,
		}
		grand += out[i].Total
	}
	for i := range out {
		out[i].Share = metrics.SafeDiv(out[i].Total, grand) * 100
	}

	slices.SortStableFunc(out, descending(func(t models.MarketTotal) float64 { return t.Total }))
	return out
}

// SkuTotals totals each SKU record over periods, sorted descending, with its
// share of its own market and of the grand total.
func SkuTotals(recs []models.SkuRecord, periods []models.Period) []models.SkuTotal {
	out := make([]models.SkuTotal, len(recs))
	byMarket := make(map[string]float64)
	var grand float64
	for i, r := range recs {
		total := r.Total(periods)
		out[i] = models.SkuTotal{
			Market:       r.Market,
			SKU:          r.SKU,
			Total:        total,
			Inventory:    r.Inventory,
			MonthsOnHand: r.MonthsOfInventory,
		}
		byMarket[r.Market] += total
		grand += total
	}
	for i := range out {
		out[i].PercentOfMarket = metrics.SafeDiv(out[i].Total, byMarket[out[i].Market]) * 100
		out[i].PercentOfTotal = metrics.SafeDiv(out[i].Total, grand) * 100
	}

	slices.SortStableFunc(out, descending(func(t models.SkuTotal) float64 { return t.Total }))
	return out
}

// MonthlySeries builds one chart point per period holding every market's
// value for that period.
func MonthlySeries(recs []models.MarketRecord, periods []models.Period) []models.MonthlyPoint {
	out := make([]models.MonthlyPoint, len(periods))
	for i, p := range periods {
		values := make(map[string]float64, len(recs))
		for _, r := range recs {
			values[r.Market] = r.Values[p]
		}
		out[i] = models.MonthlyPoint{Period: p.Name(), Values: values}
	}
	return out
}

// SkuMarketDistribution is the share of SKU volume each market holds.
func SkuMarketDistribution(rows []models.SkuTotal) []models.DistributionSlice {
	return Distribution(GroupTotals(rows,
		func(r models.SkuTotal) string { return r.Market },
		func(r models.SkuTotal) float64 { return r.Total }))
}
