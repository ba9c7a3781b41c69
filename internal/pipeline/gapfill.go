// Package pipeline chains the pretrained models over the live observation
// series: gap filling with imputation and regression backfill, single-point
// ambient prediction, and multi-step sequence forecasting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/series"
	"github.com/airsense/aqicast/internal/sources"
)

// ErrInsufficientHistory is returned when the series does not carry enough
// contiguous trailing rows to feed the sequence model.
var ErrInsufficientHistory = errors.New("insufficient history")

// ErrGapTooLarge is returned when the span between the baseline's end and
// the requested end exceeds the configured bound.
var ErrGapTooLarge = errors.New("gap exceeds configured maximum")

// canonicalNames maps raw upstream field names onto canonical model feature
// names. Fixed lookup table; anything not listed here never reaches a model.
var canonicalNames = map[string]string{
	"temperature_2m":       "temp_c",
	"relative_humidity_2m": "humidity_pct",
	"precipitation":        "precipitation_mm",
	"cloud_cover":          "cloud_cover_pct",
	"surface_pressure":     "surface_pressure_hpa",
	"pressure_msl":         "pressure_msl_hpa",
	"wind_speed_10m":       "wind_speed_kmh",
	"wind_direction_10m":   "wind_direction_deg",
	"wind_gusts_10m":       "wind_gusts_kmh",
	"uv_index":             "uv_index",
	"pm10":                 "pm10_ugm3",
	"pm2_5":                "pm2_5_ugm3",
	"carbon_monoxide":      "co_ugm3",
	"nitrogen_dioxide":     "no2_ugm3",
	"sulphur_dioxide":      "so2_ugm3",
	"ozone":                "o3_ugm3",
}

// GapFiller assembles the missing right-hand segment of the live series:
// it fetches both remote sources, joins and cleans their tables, imputes the
// soil pair, and regresses AQI for every missing hour.
type GapFiller struct {
	weather  sources.HourlySource
	air      sources.HourlySource
	registry *model.Registry
	maxGap   time.Duration
}

func NewGapFiller(weather, air sources.HourlySource, registry *model.Registry, maxGap time.Duration) *GapFiller {
	return &GapFiller{weather: weather, air: air, registry: registry, maxGap: maxGap}
}

// Fill produces ordered observations covering (lastKnown, end]. When end is
// not after lastKnown there is nothing to fetch; the caller already has the
// baseline slice. Any upstream or schema failure aborts the whole fill; no
// partial result is returned.
func (g *GapFiller) Fill(ctx context.Context, lastKnown, end time.Time) ([]series.Observation, error) {
	if !end.After(lastKnown) {
		return nil, nil
	}
	if g.maxGap > 0 && end.Sub(lastKnown) > g.maxGap {
		return nil, fmt.Errorf("%w: %s..%s spans %s", ErrGapTooLarge, lastKnown, end, end.Sub(lastKnown))
	}

	imputer, err := g.registry.SoilImputer()
	if err != nil {
		return nil, err
	}
	regressor, err := g.registry.Regressor()
	if err != nil {
		return nil, err
	}
	scaler, err := g.registry.Scaler()
	if err != nil {
		return nil, err
	}

	gapStart := lastKnown.Add(time.Hour)

	weatherTable, err := g.weather.FetchHourly(ctx, gapStart, end)
	if err != nil {
		return nil, err
	}
	airTable, err := g.air.FetchHourly(ctx, gapStart, end)
	if err != nil {
		return nil, err
	}

	obs := joinHourly(weatherTable, airTable, gapStart, end)
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: no overlapping hours between sources for %s..%s", sources.ErrUpstream, gapStart, end)
	}

	fillMissing(obs, gapColumns())
	deriveCalendar(obs)

	if err := g.imputeSoil(obs, imputer); err != nil {
		return nil, err
	}
	if err := g.regressAQI(obs, regressor, scaler.RegressionFeatures()); err != nil {
		return nil, err
	}

	log.Printf("gap fill produced %d rows for (%s, %s]", len(obs), lastKnown.Format(time.RFC3339), end.Format(time.RFC3339))
	return obs, nil
}

// joinHourly inner-joins the two tables on the hour and maps raw field
// names to canonical ones, keeping only rows inside (gapStart-1h, end].
func joinHourly(weather, air sources.HourlyTable, gapStart, end time.Time) []series.Observation {
	airIdx := make(map[int64]int, len(air.Times))
	for i, ts := range air.Times {
		airIdx[ts.Unix()] = i
	}

	var obs []series.Observation
	for i, ts := range weather.Times {
		j, ok := airIdx[ts.Unix()]
		if !ok {
			continue
		}
		if ts.Before(gapStart) || ts.After(end) {
			continue
		}

		values := make(map[string]float64, len(canonicalNames)+4)
		for raw, vals := range weather.Fields {
			if canon, ok := canonicalNames[raw]; ok {
				values[canon] = vals[i]
			}
		}
		for raw, vals := range air.Fields {
			if canon, ok := canonicalNames[raw]; ok {
				values[canon] = vals[j]
			}
		}
		obs = append(obs, series.Observation{Timestamp: ts, Values: values})
	}

	sort.Slice(obs, func(i, j int) bool { return obs[i].Timestamp.Before(obs[j].Timestamp) })
	return obs
}

func gapColumns() []string {
	cols := make([]string, 0, len(canonicalNames))
	for _, canon := range canonicalNames {
		cols = append(cols, canon)
	}
	sort.Strings(cols)
	return cols
}

// fillMissing applies the fill policy per column across the merged range:
// forward fill preserves short-term continuity, backward fill handles
// leading gaps, zero fill is the fallback for columns with no neighbors.
func fillMissing(obs []series.Observation, columns []string) {
	for _, col := range columns {
		last := math.NaN()
		for i := range obs {
			if v, ok := obs[i].Values[col]; ok && !math.IsNaN(v) {
				last = v
			} else if !math.IsNaN(last) {
				obs[i].Values[col] = last
			}
		}

		next := math.NaN()
		for i := len(obs) - 1; i >= 0; i-- {
			if v, ok := obs[i].Values[col]; ok && !math.IsNaN(v) {
				next = v
			} else if !math.IsNaN(next) {
				obs[i].Values[col] = next
			}
		}

		for i := range obs {
			if v, ok := obs[i].Values[col]; !ok || math.IsNaN(v) {
				obs[i].Values[col] = 0
			}
		}
	}
}

// deriveCalendar adds the hour and month features from each row's timestamp.
func deriveCalendar(obs []series.Observation) {
	for i := range obs {
		ts := obs[i].Timestamp
		obs[i].Values[model.FeatureHour] = float64(ts.Hour())
		obs[i].Values[model.FeatureMonth] = float64(int(ts.Month()))
	}
}

func (g *GapFiller) imputeSoil(obs []series.Observation, imputer model.Predictor) error {
	batch := make([][]float64, len(obs))
	for i := range obs {
		vec, err := model.VectorFromValues(obs[i].Values, model.SoilImputerFeatures)
		if err != nil {
			return err
		}
		batch[i] = vec
	}

	out, err := imputer.Predict(batch)
	if err != nil {
		return fmt.Errorf("soil imputation: %w", err)
	}
	for i := range obs {
		obs[i].Values[model.FeatureSoilTemp] = out[i][0]
		obs[i].Values[model.FeatureSoilMoisture] = out[i][1]
	}
	return nil
}

func (g *GapFiller) regressAQI(obs []series.Observation, regressor model.Predictor, features []string) error {
	batch := make([][]float64, len(obs))
	for i := range obs {
		vec, err := model.VectorFromValues(obs[i].Values, features)
		if err != nil {
			return err
		}
		batch[i] = vec
	}

	out, err := regressor.Predict(batch)
	if err != nil {
		return fmt.Errorf("aqi regression: %w", err)
	}
	for i := range obs {
		obs[i].Values[model.FeatureAQI] = math.Max(0, out[i][0])
	}
	return nil
}
