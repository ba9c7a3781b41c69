package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/series"
	"github.com/airsense/aqicast/internal/sources"
)

// testRegistry builds a hand-wired registry: the regressor always predicts
// 42, the imputer always predicts (5, 0.3), the sequence model predicts
// scaled step i+1, and the scaler maps aqi through mean 10 / scale 2.
func testRegistry() *model.Registry {
	feats := model.CanonicalFeatures
	mean := make([]float64, len(feats))
	scale := make([]float64, len(feats))
	for i := range scale {
		scale[i] = 1
	}
	mean[0] = 10
	scale[0] = 2
	scaler := &model.Scaler{Features: feats, Mean: mean, Scale: scale}

	regFeats := scaler.RegressionFeatures()
	regressor := model.NewLinearModel(
		"aqi-regressor", regFeats, []string{"aqi"},
		[][]float64{make([]float64, len(regFeats))}, []float64{42},
	)

	imputer := model.NewLinearModel(
		"soil-imputer", model.SoilImputerFeatures, model.SoilImputerOutputs,
		[][]float64{make([]float64, 5), make([]float64, 5)}, []float64{5, 0.3},
	)

	risk := model.NewLinearModel(
		"personal-risk", model.PersonalRiskFeatures, []string{"perceived"},
		[][]float64{{2, 0, 0, 0}}, []float64{0},
	)

	const steps = 48
	width := model.WindowLen * len(feats)
	weights := make([][]float64, steps)
	intercepts := make([]float64, steps)
	outputs := make([]string, steps)
	for i := 0; i < steps; i++ {
		weights[i] = make([]float64, width)
		intercepts[i] = float64(i + 1)
		outputs[i] = fmt.Sprintf("t+%d", i+1)
	}
	seq := model.NewWindowModel("sequence", width, outputs, weights, intercepts)

	return model.NewRegistry(scaler, regressor, imputer, risk, seq)
}

// fullDayValues returns a constant hourly array for one day, with overrides
// applied by hour index; an override of NaN renders as JSON null.
func fullDayValues(v float64, overrides map[int]float64) []interface{} {
	out := make([]interface{}, 24)
	for i := range out {
		val := v
		if ov, ok := overrides[i]; ok {
			val = ov
		}
		if math.IsNaN(val) {
			out[i] = nil
		} else {
			out[i] = val
		}
	}
	return out
}

// hourlyServer serves an Open-Meteo style hourly payload for a single day
// and records the query of the last request.
func hourlyServer(t *testing.T, day string, fields map[string][]interface{}, lastQuery *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*lastQuery = r.URL.Query()

		hourly := map[string]interface{}{}
		times := make([]string, 24)
		for i := range times {
			times[i] = fmt.Sprintf("%sT%02d:00", day, i)
		}
		hourly["time"] = times
		for name, vals := range fields {
			hourly[name] = vals
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"hourly": hourly})
	}))
}

func newTestFiller(t *testing.T, weatherURL, airURL string, client *http.Client, maxGap time.Duration) *GapFiller {
	t.Helper()
	weather := sources.NewClient("weather-archive", weatherURL, client, 27.7172, 85.3240, sources.WeatherFields)
	air := sources.NewClient("air-quality", airURL, client, 27.7172, 85.3240, sources.AirQualityFields)
	return NewGapFiller(weather, air, testRegistry(), maxGap)
}

func TestGapFillWindowAndBackfill(t *testing.T) {
	weatherFields := map[string][]interface{}{}
	for _, f := range sources.WeatherFields {
		weatherFields[f] = fullDayValues(7, nil)
	}
	// Leading nulls on temperature exercise backward fill; trailing nulls on
	// uv exercise forward fill (rows of interest are hours 1..5).
	weatherFields["temperature_2m"] = fullDayValues(25, map[int]float64{1: math.NaN(), 2: math.NaN()})
	weatherFields["uv_index"] = fullDayValues(3, map[int]float64{4: math.NaN(), 5: math.NaN()})

	airFields := map[string][]interface{}{}
	for _, f := range sources.AirQualityFields {
		if f == "ozone" {
			continue // entirely absent field must zero-fill
		}
		airFields[f] = fullDayValues(11, nil)
	}

	var weatherQuery, airQuery url.Values
	weatherSrv := hourlyServer(t, "2025-01-10", weatherFields, &weatherQuery)
	defer weatherSrv.Close()
	airSrv := hourlyServer(t, "2025-01-10", airFields, &airQuery)
	defer airSrv.Close()

	filler := newTestFiller(t, weatherSrv.URL, airSrv.URL, weatherSrv.Client(), 0)

	lastKnown := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 5, 0, 0, 0, time.UTC)

	obs, err := filler.Fill(context.Background(), lastKnown, end)
	require.NoError(t, err)
	require.Len(t, obs, 5, "fill must cover exactly (lastKnown, end]")

	// Both sources were asked for exactly the gap's date window.
	for _, q := range []url.Values{weatherQuery, airQuery} {
		assert.Equal(t, "2025-01-10", q.Get("start_date"))
		assert.Equal(t, "2025-01-10", q.Get("end_date"))
		assert.Equal(t, "27.7172", q.Get("latitude"))
		assert.Equal(t, "85.3240", q.Get("longitude"))
	}

	for i, o := range obs {
		wantTS := lastKnown.Add(time.Duration(i+1) * time.Hour)
		assert.True(t, o.Timestamp.Equal(wantTS), "row %d timestamp", i)

		assert.Equal(t, 42.0, o.Values[model.FeatureAQI], "regressor output, clamped")
		assert.Equal(t, 5.0, o.Values[model.FeatureSoilTemp])
		assert.Equal(t, 0.3, o.Values[model.FeatureSoilMoisture])
		assert.Equal(t, float64(wantTS.Hour()), o.Values[model.FeatureHour])
		assert.Equal(t, 1.0, o.Values[model.FeatureMonth])

		assert.Equal(t, 25.0, o.Values["temp_c"], "leading nulls backward-filled")
		assert.Equal(t, 3.0, o.Values["uv_index"], "trailing nulls forward-filled")
		assert.Equal(t, 0.0, o.Values["o3_ugm3"], "absent field zero-filled")
		assert.Equal(t, 11.0, o.Values["pm10_ugm3"])
	}
}

func TestGapFillNothingToFetch(t *testing.T) {
	filler := newTestFiller(t, "http://unused.invalid", "http://unused.invalid", http.DefaultClient, 0)

	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	obs, err := filler.Fill(context.Background(), now, now)
	require.NoError(t, err)
	assert.Nil(t, obs)

	obs, err = filler.Fill(context.Background(), now, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, obs)
}

func TestGapFillUpstreamFailureAborts(t *testing.T) {
	weatherFields := map[string][]interface{}{}
	for _, f := range sources.WeatherFields {
		weatherFields[f] = fullDayValues(7, nil)
	}
	var weatherQuery url.Values
	weatherSrv := hourlyServer(t, "2025-01-10", weatherFields, &weatherQuery)
	defer weatherSrv.Close()

	airSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer airSrv.Close()

	filler := newTestFiller(t, weatherSrv.URL, airSrv.URL, weatherSrv.Client(), 0)

	// A tight deadline keeps the backoff loop short; expiry still surfaces
	// as an upstream failure.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	lastKnown := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	obs, err := filler.Fill(ctx, lastKnown, lastKnown.Add(5*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sources.ErrUpstream))
	assert.Nil(t, obs, "no partial result on upstream failure")
}

func TestGapFillRefusesOversizedGap(t *testing.T) {
	filler := newTestFiller(t, "http://unused.invalid", "http://unused.invalid", http.DefaultClient, 24*time.Hour)

	lastKnown := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := filler.Fill(context.Background(), lastKnown, lastKnown.Add(48*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGapTooLarge))
}

func TestGapFillModelUnavailable(t *testing.T) {
	weather := sources.NewClient("weather-archive", "http://unused.invalid", http.DefaultClient, 0, 0, sources.WeatherFields)
	air := sources.NewClient("air-quality", "http://unused.invalid", http.DefaultClient, 0, 0, sources.AirQualityFields)
	filler := NewGapFiller(weather, air, model.NewRegistry(nil, nil, nil, nil, nil), 0)

	lastKnown := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := filler.Fill(context.Background(), lastKnown, lastKnown.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrModelUnavailable))
}

// seriesWithAllFeatures builds n contiguous hourly observations carrying the
// full canonical column set.
func seriesWithAllFeatures(start time.Time, n int, aqi float64) *series.Series {
	s := &series.Series{Columns: model.CanonicalFeatures}
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		values := make(map[string]float64, len(model.CanonicalFeatures))
		for _, col := range model.CanonicalFeatures {
			values[col] = 0
		}
		values[model.FeatureAQI] = aqi
		values[model.FeatureHour] = float64(ts.Hour())
		values[model.FeatureMonth] = float64(int(ts.Month()))
		s.Observations = append(s.Observations, series.Observation{Timestamp: ts, Values: values})
	}
	return s
}
