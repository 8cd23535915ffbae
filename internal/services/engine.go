package services

import (
	"fmt"

	"inventory-dashboard/internal/metrics"
	"inventory-dashboard/internal/models"
)

// scope is a validated filter set resolved against one snapshot.
type scope struct {
	ds      *models.Dataset
	filters models.Filters
	periods []models.Period
	window  []models.Period
}

func (a *Analytics) resolve(f models.Filters) (scope, error) {
	f = f.WithDefaults()
	if err := f.Validate(); err != nil {
		return scope{}, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	ds := a.snapshot()
	periods, err := ds.Calendar.Subset(f.Periods)
	if err != nil {
		return scope{}, err
	}
	window, err := metrics.RecentWindow(ds.Calendar, f.Window)
	if err != nil {
		return scope{}, fmt.Errorf("%w: %v", ErrInvalidFilters, err)
	}

	return scope{ds: ds, filters: f, periods: periods, window: window}, nil
}

// entity is one (market, SKU) joined across the units, dollars and
// inventory sheets.
type entity struct {
	metrics models.MetricSet
	units   models.Series
	revenue models.Series
}

type stock struct {
	inventory       float64
	monthsOnHand    float64
	hasMonthsOnHand bool
}

// skuEntities joins the SKU sheets for every market the filters select and
// computes each entity's metrics. SKU filtering is left to the caller so
// market baselines are computed over the whole market.
func (s scope) skuEntities() []entity {
	revenue := make(map[models.SkuKey]models.Series, len(s.ds.SkuDollars))
	for _, r := range s.ds.SkuDollars {
		revenue[r.Key()] = r.Values
	}

	stocks := make(map[models.SkuKey]stock, len(s.ds.SkuInventory))
	for _, r := range s.ds.SkuInventory {
		stocks[r.Key()] = stock{
			inventory:       r.Inventory,
			monthsOnHand:    r.MonthsOfInventory,
			hasMonthsOnHand: r.HasMonthsOfInventory,
		}
	}

	out := make([]entity, 0, len(s.ds.SkuUnits))
	seen := make(map[models.SkuKey]bool, len(s.ds.SkuUnits))

	add := func(key models.SkuKey, units models.Series, fallback stock) {
		seen[key] = true
		st, ok := stocks[key]
		if !ok {
			st = fallback
		}
		rev := revenue[key]
		out = append(out, entity{
			metrics: metrics.Calculate(metrics.Input{
				Market:          key.Market,
				SKU:             key.SKU,
				Units:           units,
				Revenue:         rev,
				Periods:         s.periods,
				Window:          s.window,
				Inventory:       st.inventory,
				MonthsOnHand:    st.monthsOnHand,
				HasMonthsOnHand: st.hasMonthsOnHand,
			}),
			units:   units,
			revenue: rev,
		})
	}

	for _, r := range s.ds.SkuUnits {
		if !s.filters.MatchMarket(r.Market) {
			continue
		}
		add(r.Key(), r.Values, stock{
			inventory:       r.Inventory,
			monthsOnHand:    r.MonthsOfInventory,
			hasMonthsOnHand: r.HasMonthsOfInventory,
		})
	}
	// SKUs that only appear on the dollars sheet have no unit history.
	for _, r := range s.ds.SkuDollars {
		if !s.filters.MatchMarket(r.Market) || seen[r.Key()] {
			continue
		}
		add(r.Key(), nil, stock{})
	}
	return out
}

func snapshots(es []entity) []models.MetricSet {
	out := make([]models.MetricSet, len(es))
	for i, e := range es {
		out[i] = e.metrics
	}
	return out
}

// visible applies the SKU selector.
func (s scope) visible(m models.MetricSet) bool {
	return s.filters.MatchSKU(m.SKU)
}

// stocked applies the minimum-inventory filter. Backorders always pass.
func (s scope) stocked(m models.MetricSet) bool {
	return m.Inventory < 0 || m.Inventory >= s.filters.MinInventory
}

func (s scope) marketRecords(recs []models.MarketRecord) []models.MarketRecord {
	out := make([]models.MarketRecord, 0, len(recs))
	for _, r := range recs {
		if s.filters.MatchMarket(r.Market) {
			out = append(out, r)
		}
	}
	return out
}

// withMarketInventory fills inventory fields from the market inventory
// sheet where the record itself carries none.
func (s scope) withMarketInventory(recs []models.MarketRecord) []models.MarketRecord {
	inv := make(map[string]models.MarketRecord, len(s.ds.MarketInventory))
	for _, r := range s.ds.MarketInventory {
		inv[r.Market] = r
	}

	out := make([]models.MarketRecord, len(recs))
	for i, r := range recs {
		if src, ok := inv[r.Market]; ok {
			if !r.HasInventory && src.HasInventory {
				r.Inventory, r.HasInventory = src.Inventory, true
			}
			if !r.HasMonthsOnHand && src.HasMonthsOnHand {
				r.MonthsOnHand, r.HasMonthsOnHand = src.MonthsOnHand, true
			}
		}
		out[i] = r
	}
	return out
}

func (s scope) skuRecords(recs []models.SkuRecord) []models.SkuRecord {
	inv := make(map[models.SkuKey]models.SkuRecord, len(s.ds.SkuInventory))
	for _, r := range s.ds.SkuInventory {
		inv[r.Key()] = r
	}

	out := make([]models.SkuRecord, 0, len(recs))
	for _, r := range recs {
		if !s.filters.MatchMarket(r.Market) || !s.filters.MatchSKU(r.SKU) {
			continue
		}
		if src, ok := inv[r.Key()]; ok {
			if !r.HasInventory && src.HasInventory {
				r.Inventory, r.HasInventory = src.Inventory, true
			}
			if !r.HasMonthsOfInventory && src.HasMonthsOfInventory {
				r.MonthsOfInventory, r.HasMonthsOfInventory = src.MonthsOfInventory, true
			}
		}
		out = append(out, r)
	}
	return out
}
