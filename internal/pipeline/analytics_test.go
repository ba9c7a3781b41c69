package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqicast/internal/series"
)

func TestAnalyticsAggregation(t *testing.T) {
	// Two full days of hourly data: day one at AQI 40, day two at AQI 160.
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) // a Monday
	baseline := &series.Series{Columns: []string{"aqi"}}
	for i := 0; i < 48; i++ {
		v := 40.0
		if i >= 24 {
			v = 160.0
		}
		baseline.Observations = append(baseline.Observations, series.Observation{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Values:    map[string]float64{"aqi": v},
		})
	}

	svc := NewService(testRegistry(), stubProvider{}, baseline)

	a, err := svc.Analytics(time.Time{}, time.Time{})
	require.NoError(t, err)

	require.Equal(t, []string{"2025-03-03", "2025-03-04"}, a.AQIOverTime.Labels)
	assert.Equal(t, []float64{40, 160}, a.AQIOverTime.Values)

	assert.Equal(t, 100.0, a.Stats.Mean)
	assert.Equal(t, 40.0, a.Stats.Min)
	assert.Equal(t, 160.0, a.Stats.Max)

	// Category counts: 24 Good hours, 24 Unhealthy-for-Sensitive-Groups.
	require.Len(t, a.Categories.Labels, 2)
	assert.ElementsMatch(t, []float64{24, 24}, a.Categories.Values)

	// Weekday means follow Monday-first ordering.
	require.Equal(t, []string{"Monday", "Tuesday"}, a.ByWeekday.Labels)
	assert.Equal(t, []float64{40, 160}, a.ByWeekday.Values)

	// Hourly means average the two days.
	require.Len(t, a.ByHour.Labels, 24)
	assert.Equal(t, "00:00", a.ByHour.Labels[0])
	assert.Equal(t, 100.0, a.ByHour.Values[0])
}

func TestAnalyticsEmptyRange(t *testing.T) {
	baseline := seriesWithAllFeatures(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 10, 50)
	svc := NewService(testRegistry(), stubProvider{}, baseline)

	_, err := svc.Analytics(
		time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
	)
	assert.Error(t, err)
}
