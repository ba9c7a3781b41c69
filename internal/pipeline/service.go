package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/airsense/aqicast/internal/aqi"
	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/series"
)

// SeriesProvider yields the current assembled observation series. Satisfied
// by the live cache.
type SeriesProvider interface {
	Current(ctx context.Context, now time.Time) (*series.Series, error)
}

// PredictResult is the outcome of a single ambient prediction.
type PredictResult struct {
	AQI        float64
	Category   aqi.Category
	Adjustment *aqi.Adjustment
}

// HistoryPoint is one historical chart point.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	AQI       float64   `json:"aqi"`
}

// ForecastResult pairs the look-back window with the forecast points.
type ForecastResult struct {
	Historical []HistoryPoint  `json:"historical"`
	Forecast   []ForecastPoint `json:"forecast"`
}

// Service is the pipeline facade the API layer talks to. All model handles
// and the baseline are immutable; the live cache is the only mutable
// collaborator.
type Service struct {
	registry   *model.Registry
	live       SeriesProvider
	adjuster   *aqi.Adjuster
	forecaster *SequenceForecaster
	baseline   *series.Series
}

func NewService(registry *model.Registry, live SeriesProvider, baseline *series.Series) *Service {
	return &Service{
		registry:   registry,
		live:       live,
		adjuster:   aqi.NewAdjuster(registry),
		forecaster: NewSequenceForecaster(registry),
		baseline:   baseline,
	}
}

// RegressionFeatures exposes the canonical predict-payload contract.
func (s *Service) RegressionFeatures() []string {
	return s.registry.RegressionFeatures()
}

// PredictAmbient runs the regression model over a caller-supplied canonical
// feature map and post-processes the result for presentation. A missing or
// extra feature is a hard failure, never a silent reindex.
func (s *Service) PredictAmbient(features map[string]float64, profile *aqi.Profile) (PredictResult, error) {
	regressor, err := s.registry.Regressor()
	if err != nil {
		return PredictResult{}, err
	}
	scaler, err := s.registry.Scaler()
	if err != nil {
		return PredictResult{}, err
	}

	names := scaler.RegressionFeatures()
	if len(features) != len(names) {
		return PredictResult{}, fmt.Errorf("%w: got %d features, want %d", model.ErrFeatureMismatch, len(features), len(names))
	}
	vec, err := model.VectorFromValues(features, names)
	if err != nil {
		return PredictResult{}, err
	}

	out, err := regressor.Predict([][]float64{vec})
	if err != nil {
		return PredictResult{}, fmt.Errorf("ambient regression: %w", err)
	}
	ambient := math.Max(0, out[0][0])

	adjustment, err := s.adjuster.Adjust(ambient, profile)
	if err != nil {
		return PredictResult{}, err
	}

	return PredictResult{
		AQI:        ambient,
		Category:   aqi.Categorize(ambient),
		Adjustment: adjustment,
	}, nil
}

// Forecast assembles the look-back window and the multi-step forecast,
// applying the personal adjustment per forecast point when a profile is
// present.
func (s *Service) Forecast(ctx context.Context, now time.Time, hours int, profile *aqi.Profile) (ForecastResult, error) {
	live, err := s.live.Current(ctx, now)
	if err != nil {
		return ForecastResult{}, err
	}

	points, err := s.forecaster.Forecast(live, hours)
	if err != nil {
		return ForecastResult{}, err
	}

	if !profile.Empty() {
		for i := range points {
			adj, err := s.adjuster.Adjust(points[i].AQI, profile)
			if err != nil {
				return ForecastResult{}, err
			}
			if adj != nil {
				perceived := adj.Perceived
				points[i].Perceived = &perceived
			}
		}
	}

	window := live.Tail(model.WindowLen)
	historical := make([]HistoryPoint, 0, len(window))
	for _, obs := range window {
		historical = append(historical, HistoryPoint{Timestamp: obs.Timestamp, AQI: obs.Values[model.FeatureAQI]})
	}

	return ForecastResult{Historical: historical, Forecast: points}, nil
}

// CurrentSeries returns the assembled live series.
func (s *Service) CurrentSeries(ctx context.Context, now time.Time) (*series.Series, error) {
	return s.live.Current(ctx, now)
}

// Latest returns the most recent observation of the live series.
func (s *Service) Latest(ctx context.Context, now time.Time) (series.Observation, error) {
	live, err := s.live.Current(ctx, now)
	if err != nil {
		return series.Observation{}, err
	}
	last, ok := live.Last()
	if !ok {
		return series.Observation{}, fmt.Errorf("live series is empty")
	}
	return last, nil
}

// History returns the trailing days of {timestamp, aqi} chart points.
func (s *Service) History(ctx context.Context, now time.Time, days int) ([]HistoryPoint, error) {
	live, err := s.live.Current(ctx, now)
	if err != nil {
		return nil, err
	}

	from := now.Add(-time.Duration(days) * 24 * time.Hour)
	window := live.Slice(from, now)
	points := make([]HistoryPoint, 0, len(window))
	for _, obs := range window {
		points = append(points, HistoryPoint{Timestamp: obs.Timestamp, AQI: obs.Values[model.FeatureAQI]})
	}
	return points, nil
}
