package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildFallbackSeriesShape(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	points := BuildFallbackSeries(3000, 2400, 30, now)

	assert.Len(t, points, 30)
	assert.Equal(t, "2025-06-15", points[len(points)-1].Date)
	assert.Equal(t, "2025-05-17", points[0].Date)

	// Strictly increasing dates with no gaps.
	for i := 1; i < len(points); i++ {
		prev, _ := time.Parse("2006-01-02", points[i-1].Date)
		cur, _ := time.Parse("2006-01-02", points[i].Date)
		assert.Equal(t, prev.AddDate(0, 0, 1), cur)
	}

	for _, p := range points {
		assert.GreaterOrEqual(t, p.Inflow, 0.0)
		assert.GreaterOrEqual(t, p.Outflow, 0.0)
		assert.InDelta(t, p.Inflow-p.Outflow, p.Net, 1e-9)
		// Oscillation bounded at ±10% of baseline.
		assert.InDelta(t, 100.0, p.Inflow, 10.0+1e-9)
		assert.InDelta(t, 80.0, p.Outflow, 8.0+1e-9)
	}
}

func TestBuildFallbackSeriesIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	first := BuildFallbackSeries(3000, 2400, 30, now)
	second := BuildFallbackSeries(3000, 2400, 30, now)
	assert.Equal(t, first, second)
}

func TestBuildFallbackSeriesDefaultsDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Len(t, BuildFallbackSeries(3000, 2400, 0, now), 30)
	assert.Len(t, BuildFallbackSeries(3000, 2400, -5, now), 30)
	assert.Len(t, BuildFallbackSeries(3000, 2400, 7, now), 7)
}

func TestBuildFallbackSeriesZeroTotals(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	points := BuildFallbackSeries(0, 0, 30, now)
	assert.Len(t, points, 30)
	for _, p := range points {
		assert.Zero(t, p.Inflow)
		assert.Zero(t, p.Outflow)
		assert.Zero(t, p.Net)
	}
}
