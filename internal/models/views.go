package models

// Trend compares the second half of the recent window against the first.
type Trend string

const (
	TrendGrowing   Trend = "growing"
	TrendDeclining Trend = "declining"
)

type PerformanceCategory string

const (
	CategoryStar      PerformanceCategory = "Star"
	CategoryCashCow   PerformanceCategory = "Cash Cow"
	CategoryQuestion  PerformanceCategory = "Question Mark"
	CategorySteadyLow PerformanceCategory = "Steady Low Performer"
	CategoryDog       PerformanceCategory = "Dog"
)

type HealthStatus string

const (
	HealthOverstocked    HealthStatus = "Overstocked"
	HealthModeratelyHigh HealthStatus = "Moderately High"
	HealthUnderstocked   HealthStatus = "Understocked"
	HealthBackorder      HealthStatus = "Backorder"
	HealthHealthy        HealthStatus = "Healthy"
)

type OpportunityType string

const (
	OpportunityOverstocked   OpportunityType = "Overstocked"
	OpportunityUnderstocked  OpportunityType = "Understocked"
	OpportunityHighPotential OpportunityType = "High Potential"
	OpportunityExpandMarket  OpportunityType = "Expand Market"
)

// OpportunityTypes lists every detector in reporting order.
var OpportunityTypes = []OpportunityType{
	OpportunityOverstocked,
	OpportunityUnderstocked,
	OpportunityHighPotential,
	OpportunityExpandMarket,
}

type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// MetricSet is the per-entity metric snapshot. SKU is empty for market-level
// entities.
type MetricSet struct {
	Market           string  `json:"market"`
	SKU              string  `json:"sku,omitempty"`
	WindowLength     int     `json:"window_length"`
	PeriodCount      int     `json:"period_count"`
	TotalSales       float64 `json:"total_sales"`
	TotalRevenue     float64 `json:"total_revenue"`
	RecentSales      float64 `json:"recent_sales"`
	RecentRevenue    float64 `json:"recent_revenue"`
	SalesRate        float64 `json:"sales_rate"`
	RevenueRate      float64 `json:"revenue_rate"`
	RevenuePerUnit   float64 `json:"revenue_per_unit"`
	Inventory        float64 `json:"inventory"`
	MonthsOnHand     float64 `json:"months_on_hand"`
	TurnoverRate     float64 `json:"turnover_rate"`
	SalesConsistency float64 `json:"sales_consistency"`
	Trend            Trend   `json:"trend"`
}

type PerformanceRow struct {
	Market    string              `json:"market"`
	SKU       string              `json:"sku"`
	Category  PerformanceCategory `json:"category"`
	Rationale string              `json:"rationale"`
	Metrics   MetricSet           `json:"metrics"`
}

type HealthRow struct {
	Market    string       `json:"market"`
	SKU       string       `json:"sku"`
	Status    HealthStatus `json:"status"`
	Rationale string       `json:"rationale"`
	Metrics   MetricSet    `json:"metrics"`
}

// Opportunity is one detector hit. Value is the figure the impact tier was
// derived from (inventory value, lost revenue, recent revenue or revenue
// growth, depending on Type).
type Opportunity struct {
	Market    string          `json:"market"`
	SKU       string          `json:"sku"`
	Type      OpportunityType `json:"type"`
	Impact    Impact          `json:"impact"`
	Value     float64         `json:"value"`
	Rationale string          `json:"rationale"`
	Metrics   MetricSet       `json:"metrics"`
}

type MarketTotal struct {
	Market       string  `json:"market"`
	Total        float64 `json:"total"`
	Inventory    float64 `json:"inventory"`
	MonthsOnHand float64 `json:"months_on_hand"`
	Share        float64 `json:"share"`
}

type SkuTotal struct {
	Market          string  `json:"market"`
	SKU             string  `json:"sku"`
	Total           float64 `json:"total"`
	Inventory       float64 `json:"inventory"`
	MonthsOnHand    float64 `json:"months_on_hand"`
	PercentOfMarket float64 `json:"percent_of_market"`
	PercentOfTotal  float64 `json:"percent_of_total"`
}

// MonthlyPoint is one x-axis point of a trend chart: the value of every
// series (market) for a single period.
type MonthlyPoint struct {
	Period string             `json:"period"`
	Values map[string]float64 `json:"values"`
}

type DistributionSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Share float64 `json:"share"`
}

type ConcentrationPoint struct {
	Name            string  `json:"name"`
	Revenue         float64 `json:"revenue"`
	Cumulative      float64 `json:"cumulative"`
	CumulativeShare float64 `json:"cumulative_share"`
}

// ConcentrationResult is the 80/20 summary: how many entities make up the
// first 80% of revenue, out of the entities that sold anything at all.
type ConcentrationResult struct {
	TotalRevenue   float64              `json:"total_revenue"`
	EntitiesNeeded int                  `json:"entities_needed"`
	ActiveEntities int                  `json:"active_entities"`
	Percentage     float64              `json:"percentage"`
	Curve          []ConcentrationPoint `json:"curve"`
}

type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
