package classify

import (
	"fmt"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
	"inventory-dashboard/internal/thresholds"
)

// OpportunityInput joins one entity's snapshot with the window comparisons
// and market figures the detectors need.
type OpportunityInput struct {
	Metrics models.MetricSet

	// UnitGrowth and RevenueGrowth compare the two halves of the recent
	// window for units and revenue respectively.
	UnitGrowth    metrics.Growth
	RevenueGrowth metrics.Growth

	// Baseline is the market baseline over recent sales.
	Baseline thresholds.Thresholds

	// MarketMonthlyAverage is the market's mean SKU units per period.
	MarketMonthlyAverage float64
}

// NewOpportunityInput builds the detector input from the entity's series.
func NewOpportunityInput(m models.MetricSet, units, revenue models.Series, window []models.Period,
	baseline thresholds.Thresholds, marketMonthlyAverage float64) OpportunityInput {
	return OpportunityInput{
		Metrics:              m,
		UnitGrowth:           metrics.HalfGrowth(units, window),
		RevenueGrowth:        metrics.HalfGrowth(revenue, window),
		Baseline:             baseline,
		MarketMonthlyAverage: marketMonthlyAverage,
	}
}

// Detector reports at most one opportunity for an entity.
type Detector func(OpportunityInput) (models.Opportunity, bool)

// Detectors lists the independent detectors in reporting order.
var Detectors = []Detector{
	Overstocked,
	Understocked,
	HighPotential,
	ExpandMarket,
}

// DetectOpportunities runs every detector. An entity may qualify for more
// than one type.
func DetectOpportunities(in OpportunityInput) []models.Opportunity {
	var out []models.Opportunity
	for _, d := range Detectors {
		if o, ok := d(in); ok {
			out = append(out, o)
		}
	}
	return out
}

func pricePerUnit(m models.MetricSet) float64 {
	return metrics.SafeDiv(m.RecentRevenue, m.RecentSales)
}

func opportunity(m models.MetricSet, t models.OpportunityType, impact models.Impact, value float64, rationale string) models.Opportunity {
	return models.Opportunity{
		Market:    m.Market,
		SKU:       m.SKU,
		Type:      t,
		Impact:    impact,
		Value:     value,
		Rationale: rationale,
		Metrics:   m,
	}
}

func Overstocked(in OpportunityInput) (models.Opportunity, bool) {
	m := in.Metrics
	if m.MonthsOnHand <= 4 {
		return models.Opportunity{}, false
	}

	value := m.Inventory * pricePerUnit(m)

	impact := models.ImpactLow
	switch {
	case (m.MonthsOnHand > 6 && value > 5000) || value > 10000:
		impact = models.ImpactHigh
	case (m.MonthsOnHand > 6 && value > 1000) || value > 5000:
		impact = models.ImpactMedium
	}

	return opportunity(m, models.OpportunityOverstocked, impact, value,
		fmt.Sprintf("%.1f months on hand ties up %.2f in inventory", m.MonthsOnHand, value)), true
}

// Understocked requires a strictly positive runway: zero-inventory items
// are treated as discontinued. The health classifier's understocked rule
// has no such floor.
func Understocked(in OpportunityInput) (models.Opportunity, bool) {
	m := in.Metrics
	cut := in.Baseline.UnderstockedCut()
	if m.MonthsOnHand <= 0 || m.MonthsOnHand >= 1 || m.RecentSales <= cut {
		return models.Opportunity{}, false
	}

	lost := m.RecentSales * pricePerUnit(m) * 0.5

	impact := models.ImpactLow
	switch {
	case lost > 5000:
		impact = models.ImpactHigh
	case lost > 2000:
		impact = models.ImpactMedium
	}

	return opportunity(m, models.OpportunityUnderstocked, impact, lost,
		fmt.Sprintf("%.1f months on hand with %.0f recent sales above market cut %.0f; %.2f potential lost revenue",
			m.MonthsOnHand, m.RecentSales, cut, lost)), true
}

func HighPotential(in OpportunityInput) (models.Opportunity, bool) {
	m := in.Metrics
	cut := in.Baseline.HighPotential()
	if m.TurnoverRate <= 6 || m.RecentSales <= cut {
		return models.Opportunity{}, false
	}

	impact := models.ImpactLow
	switch {
	case m.RecentRevenue > 10000:
		impact = models.ImpactHigh
	case m.RecentRevenue > 5000:
		impact = models.ImpactMedium
	}

	return opportunity(m, models.OpportunityHighPotential, impact, m.RecentRevenue,
		fmt.Sprintf("turnover %.1fx with %.0f recent sales above market cut %.0f", m.TurnoverRate, m.RecentSales, cut)), true
}

// ExpandMarket flags SKUs whose unit sales grew between the window halves.
// Windows under three periods cannot be split meaningfully.
func ExpandMarket(in OpportunityInput) (models.Opportunity, bool) {
	m := in.Metrics
	if m.WindowLength < 3 {
		return models.Opportunity{}, false
	}

	g := in.UnitGrowth
	if g.FirstAvg == 0 {
		return models.Opportunity{}, false
	}
	volume := g.SecondAvg > 100 || g.SecondAvg > in.MarketMonthlyAverage*0.5
	if g.Rate <= 25 || g.Absolute <= 50 || !volume {
		return models.Opportunity{}, false
	}

	revenueGrowth := in.RevenueGrowth.Absolute
	current := in.RevenueGrowth.SecondSum

	impact := models.ImpactLow
	switch {
	case revenueGrowth > 1000 || current > 3000:
		impact = models.ImpactHigh
	case revenueGrowth > 500 || current > 1500:
		impact = models.ImpactMedium
	}

	return opportunity(m, models.OpportunityExpandMarket, impact, revenueGrowth,
		fmt.Sprintf("units grew %.0f%% (%.0f to %.0f per month)", g.Rate, g.FirstAvg, g.SecondAvg)), true
}

// MarketMonthlyAverages returns each market's mean SKU units per selected
// period.
func MarketMonthlyAverages(ms []models.MetricSet) map[string]float64 {
	type acc struct {
		sum     float64
		n       int
		periods int
	}
	groups := make(map[string]*acc)
	for _, m := range ms {
		a := groups[m.Market]
		if a == nil {
			a = &acc{periods: m.PeriodCount}
			groups[m.Market] = a
		}
		a.sum += m.TotalSales
		a.n++
	}

	out := make(map[string]float64, len(groups))
	for market, a := range groups {
		mean := metrics.SafeDiv(a.sum, float64(a.n))
		out[market] = metrics.SafeDiv(mean, float64(a.periods))
	}
	return out
}
