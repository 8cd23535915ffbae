package classify

import (
	"fmt"

	"inventory-dashboard/internal/models"
)

const (
	overstockedMonths    = 4
	moderatelyHighMonths = 2
	understockedMonths   = 1
	understockedSales    = 50
)

// InventoryHealth labels an entity's stock position. Rules are checked in
// order and the first match wins, so a backorder with months on hand above
// two reports the months rule.
func InventoryHealth(m models.MetricSet) models.HealthRow {
	var (
		status    models.HealthStatus
		rationale string
	)

	switch {
	case m.MonthsOnHand > overstockedMonths:
		status = models.HealthOverstocked
		rationale = fmt.Sprintf("%.1f months on hand exceeds %d", m.MonthsOnHand, overstockedMonths)
	case m.MonthsOnHand > moderatelyHighMonths:
		status = models.HealthModeratelyHigh
		rationale = fmt.Sprintf("%.1f months on hand exceeds %d", m.MonthsOnHand, moderatelyHighMonths)
	case m.MonthsOnHand < understockedMonths && m.RecentSales > understockedSales:
		status = models.HealthUnderstocked
		rationale = fmt.Sprintf("%.1f months on hand with %.0f recent sales", m.MonthsOnHand, m.RecentSales)
	case m.Inventory < 0:
		status = models.HealthBackorder
		rationale = fmt.Sprintf("inventory %.0f is on backorder", m.Inventory)
	default:
		status = models.HealthHealthy
		rationale = fmt.Sprintf("%.1f months on hand", m.MonthsOnHand)
	}

	return models.HealthRow{
		Market:    m.Market,
		SKU:       m.SKU,
		Status:    status,
		Rationale: rationale,
		Metrics:   m,
	}
}

func InventoryHealthAll(ms []models.MetricSet) []models.HealthRow {
	rows := make([]models.HealthRow, len(ms))
	for i, m := range ms {
		rows[i] = InventoryHealth(m)
	}
	return rows
}
