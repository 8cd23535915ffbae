package services

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"inventory-dashboard/internal/aggregate"
	"inventory-dashboard/internal/models"
)

// MarketReport bundles every SKU-level view for one market.
type MarketReport struct {
	Market        string                     `json:"market"`
	Performance   []models.PerformanceRow    `json:"performance"`
	Health        []models.HealthRow         `json:"health"`
	Opportunities []models.Opportunity       `json:"opportunities"`
	Concentration models.ConcentrationResult `json:"concentration"`
	Categories    CategorySummary            `json:"categories"`
}

// PrecomputeMarkets builds a report for every market in the snapshot. The
// market selector in f is ignored; every other filter applies. Markets are
// computed in parallel over the same immutable snapshot.
func (a *Analytics) PrecomputeMarkets(ctx context.Context, f models.Filters) (map[string]MarketReport, error) {
	ctx, span := tracer.Start(ctx, "analytics.PrecomputeMarkets")
	defer span.End()

	base, err := a.resolve(f)
	if err != nil {
		return nil, err
	}

	markets := aggregate.Distinct(base.ds.MarketUnits, func(r models.MarketRecord) string { return r.Market })
	markets = append(markets, aggregate.Distinct(base.ds.SkuUnits, func(r models.SkuRecord) string { return r.Market })...)
	markets = aggregate.Distinct(markets, func(m string) string { return m })
	span.SetAttributes(attribute.Int("markets", len(markets)))

	var (
		mu      sync.Mutex
		reports = make(map[string]MarketReport, len(markets))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, market := range markets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			s := base
			s.filters.Market = market
			es := s.skuEntities()

			r := MarketReport{
				Market:        market,
				Performance:   performance(s, es),
				Health:        health(s, es),
				Opportunities: opportunities(s, es),
				Concentration: concentration(s, es),
				Categories:    categoryCounts(s, es),
			}

			mu.Lock()
			reports[market] = r
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug("markets precomputed", "markets", len(reports))
	return reports, nil
}
