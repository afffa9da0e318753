package models

import (
	"encoding/json"
	"math"
	"time"
)

// RawRow is a single row from an imported file: arbitrary column names
// mapped to arbitrary scalar values. Casing and exact wording of the
// column names vary by source file.
type RawRow map[string]any

// FieldKind is the target type a canonical field is coerced to.
type FieldKind int

const (
	FieldNumber FieldKind = iota
	FieldString
	FieldBool
)

// FieldSpec describes one canonical logical field: its target type and
// the ordered column-name synonyms accepted for it. Alias order encodes
// priority, the first alias with a present, non-empty value wins.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Aliases  []string
	Required bool
}

// NormalizedRecord maps canonical field names to typed values. Unresolved
// numeric fields carry NaN and unresolved string fields carry "".
type NormalizedRecord map[string]any

// MarshalJSON renders NaN/Inf sentinels as null so persisted records stay
// valid JSON.
func (r NormalizedRecord) MarshalJSON() ([]byte, error) {
	safe := make(map[string]any, len(r))
	for k, v := range r {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			safe[k] = nil
			continue
		}
		safe[k] = v
	}
	return json.Marshal(safe)
}

// DatasetIssues summarizes data-quality findings for one imported dataset.
// A field may appear in both lists: detected in some rows, missing in
// others. That signals partial data, not total absence.
type DatasetIssues struct {
	Missing  []string `json:"missing"`
	Detected []string `json:"detected"`
}

// Dataset is one imported tabular dataset, scoped to a user and house.
type Dataset struct {
	ID        string             `json:"id"`
	HouseID   string             `json:"house_id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	RowCount  int                `json:"row_count"`
	Issues    DatasetIssues      `json:"issues"`
	Records   []NormalizedRecord `json:"records"`
}

// House is a named workspace under a user account. Datasets and settings
// are partitioned per house.
type House struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CashflowPoint is one calendar day of the cashflow series.
type CashflowPoint struct {
	Date    string  `json:"date"` // ISO 8601 date, no time component
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
	Net     float64 `json:"net"`
}

// DailyCashflowPayload wraps the daily series. Synthetic marks a series
// generated from aggregate totals alone, illustrative only.
type DailyCashflowPayload struct {
	Points    []CashflowPoint `json:"points"`
	Synthetic bool            `json:"synthetic"`
}

// RollingCashflowPoint carries the precomputed 14-day rolling averages.
type RollingCashflowPoint struct {
	Date          string  `json:"date"`
	AvgInflow14d  float64 `json:"avg_inflow_14d"`
	AvgOutflow14d float64 `json:"avg_outflow_14d"`
	AvgNet14d     float64 `json:"avg_net_14d"`
}

// AnomalyPoint is a day whose net cashflow the warehouse flagged as a
// statistical outlier.
type AnomalyPoint struct {
	Date   string  `json:"date"`
	Net    float64 `json:"net"`
	ZScore float64 `json:"z_score"`
}

// BudgetVarianceLine compares budgeted against actual spend per category.
type BudgetVarianceLine struct {
	Period      string   `json:"period"`
	Category    string   `json:"category"`
	Budgeted    float64  `json:"budgeted"`
	Actual      float64  `json:"actual"`
	VariancePct *float64 `json:"variance_pct"` // nil when budgeted is zero
}

// LiquiditySnapshot aggregates cash and runway metrics for one house.
type LiquiditySnapshot struct {
	CashBalance        float64 `json:"cash_balance"`
	AvailableLiquidity float64 `json:"available_liquidity"`
	MonthlyBurnRate    float64 `json:"monthly_burn_rate"`
	RunwayDays         *int64  `json:"runway_days"` // nil when there is no burn
}

// ExposureLine summarizes open exposure per counterparty.
type ExposureLine struct {
	Counterparty string  `json:"counterparty"`
	Category     string  `json:"category"`
	Amount       float64 `json:"amount"`
}

// RevenuePoint is one month of revenue.
type RevenuePoint struct {
	Month   string  `json:"month"` // YYYY-MM
	Revenue float64 `json:"revenue"`
}

// ForecastPoint is one projected day of net cashflow.
type ForecastPoint struct {
	Date         string  `json:"date"`
	ProjectedNet float64 `json:"projected_net"`
}
