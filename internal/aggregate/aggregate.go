// Package aggregate rolls entity-level values up into group summaries.
package aggregate

import (
	"cmp"
	"slices"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
)

// ConcentrationShare is the cumulative revenue share the 80/20 count stops at.
const ConcentrationShare = 0.8

// DefaultTopN is how many SKUs the top-sellers charts show.
const DefaultTopN = 15

type Group struct {
	Key   string  `json:"key"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// descending orders by value, largest first. Used with the stable sorts so
// ties keep their input order.
func descending[T any](value func(T) float64) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Compare(value(b), value(a))
	}
}

// GroupTotals sums value per key and sorts the groups descending by total.
// Groups with equal totals keep the order their keys first appeared in.
func GroupTotals[T any](items []T, key func(T) string, value func(T) float64) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Total += value(it)
		groups[i].Count++
	}

	slices.SortStableFunc(groups, descending(func(g Group) float64 { return g.Total }))
	return groups
}

// TopN returns the n largest items by value without modifying items.
func TopN[T any](items []T, n int, value func(T) float64) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, descending(value))
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Entity is one revenue contributor for concentration analysis.
type Entity struct {
	Name    string
	Revenue float64
	Units   float64
}

// Concentration sorts entities by revenue and counts how many it takes to
// reach 80% of the total. Entities with neither revenue nor units are not
// active and are left out of both the curve and the denominator.
func Concentration(entities []Entity) models.ConcentrationResult {
	active := make([]Entity, 0, len(entities))
	var total float64
	for _, e := range entities {
		if e.Revenue == 0 && e.Units == 0 {
			continue
		}
		active = append(active, e)
		total += e.Revenue
	}
	slices.SortStableFunc(active, descending(func(e Entity) float64 { return e.Revenue }))

	res := models.ConcentrationResult{
		TotalRevenue:   total,
		ActiveEntities: len(active),
		Curve:          make([]models.ConcentrationPoint, 0, len(active)),
	}

	target := total * ConcentrationShare
	var cum float64
	for _, e := range active {
		cum += e.Revenue
		res.Curve = append(res.Curve, models.ConcentrationPoint{
			Name:            e.Name,
			Revenue:         e.Revenue,
			Cumulative:      cum,
			CumulativeShare: metrics.SafeDiv(cum, total) * 100,
		})
		if res.EntitiesNeeded == 0 && total > 0 && cum >= target {
			res.EntitiesNeeded = len(res.Curve)
		}
	}
	res.Percentage = metrics.SafeDiv(float64(res.EntitiesNeeded), float64(res.ActiveEntities)) * 100
	return res
}

// Tally counts labels. Labels in order come first, zero counts included;
// labels outside order follow in first-seen order.
func Tally[T any](items []T, label func(T) string, order ...string) []models.CategoryCount {
	counts := make(map[string]int, len(order))
	var extra []string
	for _, it := range items {
		l := label(it)
		if _, seen := counts[l]; !seen && !slices.Contains(order, l) {
			extra = append(extra, l)
		}
		counts[l]++
	}

	out := make([]models.CategoryCount, 0, len(order)+len(extra))
	for _, l := range slices.Concat(order, extra) {
		out = append(out, models.CategoryCount{Label: l, Count: counts[l]})
	}
	return out
}

// Distribution converts group totals into share slices of their sum.
func Distribution(groups []Group) []models.DistributionSlice {
	var total float64
	for _, g := range groups {
		total += g.Total
	}
	out := make([]models.DistributionSlice, len(groups))
	for i, g := range groups {
		out[i] = models.DistributionSlice{
			Name:  g.Key,
			Value: g.Total,
			Share: metrics.SafeDiv(g.Total, total) * 100,
		}
	}
	return out
}

// Distinct returns the unique keys in first-seen order.
func Distinct[T any](items []T, key func(T) string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		k := key(it)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
