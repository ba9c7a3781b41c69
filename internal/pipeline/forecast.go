package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/series"
)

// ForecastPoint is one forecast step. Perceived is set only when a profile
// produced a personal adjustment.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	AQI       float64   `json:"aqi"`
	Perceived *float64  `json:"perceivedAqi,omitempty"`
}

// SequenceForecaster windows the series' tail through the trained sequence
// model and inverse-scales its output into a multi-step AQI forecast.
type SequenceForecaster struct {
	registry *model.Registry
}

func NewSequenceForecaster(registry *model.Registry) *SequenceForecaster {
	return &SequenceForecaster{registry: registry}
}

// Forecast returns at most horizonHours points stamped last+1h..last+N,
// strictly increasing and contiguous. It requires model.WindowLen trailing
// contiguous hourly rows; anything less fails with ErrInsufficientHistory.
func (f *SequenceForecaster) Forecast(s *series.Series, horizonHours int) ([]ForecastPoint, error) {
	if horizonHours <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizonHours)
	}

	seq, err := f.registry.Sequence()
	if err != nil {
		return nil, err
	}
	scaler, err := f.registry.Scaler()
	if err != nil {
		return nil, err
	}
	targetIdx, err := scaler.TargetIndex()
	if err != nil {
		return nil, err
	}

	window, ok := s.ContiguousTail(model.WindowLen)
	if !ok {
		return nil, fmt.Errorf("%w: need %d contiguous hourly rows, have %d usable", ErrInsufficientHistory, model.WindowLen, len(window))
	}

	rows := make([][]float64, len(window))
	for i, obs := range window {
		vec, err := model.VectorFromValues(obs.Values, scaler.Features)
		if err != nil {
			return nil, err
		}
		rows[i] = vec
	}

	scaled, err := scaler.Transform(rows)
	if err != nil {
		return nil, err
	}

	flat := make([]float64, 0, len(scaled)*len(scaler.Features))
	for _, row := range scaled {
		flat = append(flat, row...)
	}

	out, err := seq.Predict([][]float64{flat})
	if err != nil {
		return nil, fmt.Errorf("sequence inference: %w", err)
	}
	scaledTargets := out[0]

	// The scaler inverts full-width rows only, so rebuild a zero matrix with
	// the predicted target written into its column; every other column of
	// the inverted result is meaningless and dropped.
	dummy := make([][]float64, len(scaledTargets))
	for i, v := range scaledTargets {
		row := make([]float64, len(scaler.Features))
		row[targetIdx] = v
		dummy[i] = row
	}
	inverted, err := scaler.InverseTransform(dummy)
	if err != nil {
		return nil, err
	}

	last := window[len(window)-1].Timestamp
	n := len(inverted)
	if n > horizonHours {
		n = horizonHours
	}

	points := make([]ForecastPoint, n)
	for i := 0; i < n; i++ {
		points[i] = ForecastPoint{
			Timestamp: last.Add(time.Duration(i+1) * time.Hour),
			AQI:       math.Max(0, inverted[i][targetIdx]),
		}
	}
	return points, nil
}
