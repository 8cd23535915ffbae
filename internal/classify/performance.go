// Package classify applies the decision tables that label entities from
// their metrics and market baselines. Every function is pure.
package classify

import (
	"fmt"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/thresholds"
)

// Performance places an entity in the revenue/rate quadrant. revenue is the
// market baseline over total revenue.
func Performance(m models.MetricSet, revenue thresholds.Thresholds) models.PerformanceRow {
	strong := revenue.Strong()
	rateCut := metrics.SafeDiv(revenue.Mean, float64(m.PeriodCount))

	highRevenue := m.TotalRevenue > strong
	fastRate := m.RevenueRate > rateCut
	consistent := m.SalesConsistency >= metrics.ConsistencyFloor
	growing := m.Trend == models.TrendGrowing

	var cat models.PerformanceCategory
	switch {
	case highRevenue && fastRate && consistent:
		cat = models.CategoryStar
	case highRevenue && !fastRate && consistent:
		cat = models.CategoryCashCow
	case !highRevenue && fastRate && consistent:
		cat = models.CategoryQuestion
	case !highRevenue && consistent && growing:
		cat = models.CategorySteadyLow
	default:
		cat = models.CategoryDog
	}

	rationale := fmt.Sprintf("revenue %.2f vs strong %.2f, rate %.2f vs %.2f, consistency %.0f%%, %s",
		m.TotalRevenue, strong, m.RevenueRate, rateCut, m.SalesConsistency*100, m.Trend)
	if weak := revenue.Weak(); m.TotalRevenue < weak {
		rationale += fmt.Sprintf(", below weak %.2f", weak)
	}

	return models.PerformanceRow{
		Market:    m.Market,
		SKU:       m.SKU,
		Category:  cat,
		Rationale: rationale,
		Metrics:   m,
	}
}

// PerformanceAll classifies every snapshot against its market's baseline.
// Snapshots whose market has no baseline are left out.
func PerformanceAll(ms []models.MetricSet, revenue thresholds.Set) []models.PerformanceRow {
	rows := make([]models.PerformanceRow, 0, len(ms))
	for _, m := range ms {
		t, ok := revenue.Lookup(m.Market)
		if !ok {
			continue
		}
		rows = append(rows, Performance(m, t))
	}
	return rows
}
