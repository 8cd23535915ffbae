// Package metrics derives per-entity scalar metrics from normalized records
// over a recent window of the period calendar.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"inventory-dashboard/internal/models"
)

// ConsistencyFloor is the sales consistency an entity needs to count as a
// consistent seller.
const ConsistencyFloor = 0.6

var ErrWindowLength = errors.New("recent window must be 3, 6, 9 or 12 periods")

// WindowLengths are the recent-window sizes a caller may ask for.
var WindowLengths = []int{3, 6, 9, 12}

// RecentWindow returns the trailing n periods of the calendar. When the
// calendar holds fewer than n periods the whole calendar is the window.
func RecentWindow(cal models.Calendar, n int) ([]models.Period, error) {
	if !slices.Contains(WindowLengths, n) {
		return nil, fmt.Errorf("%w: got %d", ErrWindowLength, n)
	}
	return cal.Recent(n), nil
}

// SafeDiv divides and yields 0 instead of NaN or infinity.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}

// SplitHalves splits a window into two contiguous halves. The first half has
// floor(N/2) periods, the second the remainder.
func SplitHalves(window []models.Period) (first, second []models.Period) {
	mid := len(window) / 2
	return window[:mid], window[mid:]
}

// Growth compares the average of a series over the two halves of a window.
type Growth struct {
	FirstAvg  float64 `json:"first_avg"`
	SecondAvg float64 `json:"second_avg"`
	SecondSum float64 `json:"second_sum"`
	Absolute  float64 `json:"absolute"`
	// Rate is a percentage; 0 when the first half averaged 0.
	Rate float64 `json:"rate"`
}

func HalfGrowth(s models.Series, window []models.Period) Growth {
	first, second := SplitHalves(window)
	g := Growth{
		FirstAvg:  SafeDiv(s.Sum(first), float64(len(first))),
		SecondSum: s.Sum(second),
	}
	g.SecondAvg = SafeDiv(g.SecondSum, float64(len(second)))
	g.Absolute = g.SecondAvg - g.FirstAvg
	g.Rate = SafeDiv(g.Absolute, g.FirstAvg) * 100
	return g
}

// Input is everything Calculate needs for one entity. Revenue is nil when
// the entity has no matching revenue record.
type Input struct {
	Market  string
	SKU     string
	Units   models.Series
	Revenue models.Series

	// Periods is the caller's period selection used for totals. Window is
	// the recent window used for rates, consistency and trend.
	Periods []models.Period
	Window  []models.Period

	Inventory       float64
	MonthsOnHand    float64
	HasMonthsOnHand bool
}

// Calculate derives the metric snapshot for one entity. Every ratio is zero
// guarded.
func Calculate(in Input) models.MetricSet {
	n := float64(len(in.Window))

	m := models.MetricSet{
		Market:        in.Market,
		SKU:           in.SKU,
		WindowLength:  len(in.Window),
		PeriodCount:   len(in.Periods),
		TotalSales:    in.Units.Sum(in.Periods),
		TotalRevenue:  in.Revenue.Sum(in.Periods),
		RecentSales:   in.Units.Sum(in.Window),
		RecentRevenue: in.Revenue.Sum(in.Window),
		Inventory:     in.Inventory,
	}

	m.SalesRate = SafeDiv(m.RecentSales, n)
	m.RevenueRate = SafeDiv(m.RecentRevenue, n)
	m.RevenuePerUnit = SafeDiv(m.RecentRevenue, m.RecentSales)

	if in.HasMonthsOnHand {
		m.MonthsOnHand = in.MonthsOnHand
	} else {
		m.MonthsOnHand = MonthsOnHand(in.Inventory, m.SalesRate)
	}
	m.TurnoverRate = TurnoverRate(m.MonthsOnHand)
	m.SalesConsistency = Consistency(in.Units, in.Window)
	m.Trend = TrendOf(in.Units, in.Revenue, in.Window)
	return m
}

// MonthsOnHand is inventory divided by the monthly sales rate. Backorders
// have no runway and report 0.
func MonthsOnHand(inventory, salesRate float64) float64 {
	if inventory <= 0 {
		return 0
	}
	return SafeDiv(inventory, salesRate)
}

// TurnoverRate annualizes inventory cycles: 12 / monthsOnHand, or 0 when
// there is no positive runway.
func TurnoverRate(monthsOnHand float64) float64 {
	if monthsOnHand <= 0 {
		return 0
	}
	return SafeDiv(12, monthsOnHand)
}

// Consistency is the fraction of window periods with positive sales.
func Consistency(s models.Series, window []models.Period) float64 {
	selling := 0
	for _, v := range s.Values(window) {
		if v > 0 {
			selling++
		}
	}
	return SafeDiv(float64(selling), float64(len(window)))
}

// TrendOf compares the two window halves of the revenue series, or the
// units series when there is no revenue. Ties count as growing.
func TrendOf(units, revenue models.Series, window []models.Period) models.Trend {
	s := units
	if revenue != nil {
		s = revenue
	}
	first, second := SplitHalves(window)
	if s.Sum(second) >= s.Sum(first) {
		return models.TrendGrowing
	}
	return models.TrendDeclining
}
