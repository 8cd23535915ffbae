// Package thresholds computes market-relative statistical baselines over a
// metric population.
package thresholds

import (
	"errors"
	"fmt"
	"math"

	"inventory-dashboard/internal/models"
)

// ErrEmptyPopulation means no classification is possible for the market.
var ErrEmptyPopulation = errors.New("empty threshold population")

// Population selects the metric a baseline is computed over.
type Population string

const (
	PopulationTotalRevenue  Population = "total_revenue"
	PopulationTotalUnits    Population = "total_units"
	PopulationRecentSales   Population = "recent_sales"
	PopulationRecentRevenue Population = "recent_revenue"
)

// Value reads the population's metric from a snapshot.
func (p Population) Value(m models.MetricSet) float64 {
	switch p {
	case PopulationTotalRevenue:
		return m.TotalRevenue
	case PopulationTotalUnits:
		return m.TotalSales
	case PopulationRecentSales:
		return m.RecentSales
	case PopulationRecentRevenue:
		return m.RecentRevenue
	default:
		panic(fmt.Sprintf("thresholds: unknown population %q", string(p)))
	}
}

// Thresholds is one market's baseline. StdDev uses the population formula.
type Thresholds struct {
	Market string  `json:"market"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

func (t Thresholds) Strong() float64 {
	return t.Mean + 0.5*t.StdDev
}

func (t Thresholds) Weak() float64 {
	return t.Mean - t.StdDev
}

func (t Thresholds) HighPotential() float64 {
	return t.Mean + 0.75*t.StdDev
}

func (t Thresholds) UnderstockedCut() float64 {
	return t.Mean + 0.25*t.StdDev
}

// Compute returns the baseline for values. A population of size 0 has no
// defined baseline and returns ErrEmptyPopulation.
func Compute(market string, values []float64) (Thresholds, error) {
	if len(values) == 0 {
		return Thresholds{Market: market}, fmt.Errorf("%w: market %q", ErrEmptyPopulation, market)
	}

	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return Thresholds{
		Market: market,
		Count:  len(values),
		Mean:   mean,
		StdDev: math.Sqrt(sq / n),
	}, nil
}

// Set holds one baseline per market.
type Set map[string]Thresholds

// Lookup returns the market's baseline. ok is false when the market had no
// members, in which case nothing in it may be classified.
func (s Set) Lookup(market string) (Thresholds, bool) {
	t, ok := s[market]
	return t, ok
}

// ByMarket groups the snapshots by market and computes each market's
// baseline over the chosen population.
func ByMarket(ms []models.MetricSet, pop Population) Set {
	groups := make(map[string][]float64)
	for _, m := range ms {
		groups[m.Market] = append(groups[m.Market], pop.Value(m))
	}

	set := make(Set, len(groups))
	for market, values := range groups {
		// groups never hold empty slices
		t, _ := Compute(market, values)
		set[market] = t
	}
	return set
}
