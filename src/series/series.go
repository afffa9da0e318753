// Package series synthesizes a plausible daily cashflow series from
// 30-day aggregate totals, for use while the authoritative per-day view
// is missing or still loading. The output is illustrative only: the
// oscillation redistributes the totals but is not renormalized, so the
// generated points never sum exactly back to the inputs.
package series

import (
	"math"
	"time"

	"github.com/username/finboard/backend/src/models"
)

const defaultDays = 30

// waveAmplitude bounds the day-to-day variation at ±10% of the baseline.
const waveAmplitude = 0.1

// BuildFallbackSeries returns exactly `days` consecutive calendar days,
// oldest first, ending at now's calendar day. Deterministic given
// (inflow30d, outflow30d, days, now); now is caller-supplied so there is
// no ambient clock dependency.
func BuildFallbackSeries(inflow30d, outflow30d float64, days int, now time.Time) []models.CashflowPoint {
	if days <= 0 {
		days = defaultDays
	}

	inflowBase := inflow30d / float64(days)
	outflowBase := outflow30d / float64(days)

	points := make([]models.CashflowPoint, 0, days)
	for i := 0; i < days; i++ {
		remaining := days - 1 - i // days until the final point
		wave := math.Sin(2*math.Pi*float64(remaining)/float64(days)) * waveAmplitude

		inflow := math.Max(0, inflowBase*(1+wave))
		outflow := math.Max(0, outflowBase*(1-0.8*wave))

		day := now.AddDate(0, 0, -remaining)
		points = append(points, models.CashflowPoint{
			Date:    day.Format("2006-01-02"),
			Inflow:  inflow,
			Outflow: outflow,
			Net:     inflow - outflow,
		})
	}
	return points
}
