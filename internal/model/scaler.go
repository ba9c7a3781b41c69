package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Scaler holds the fitted standard-scaler parameters together with the
// canonical feature name order every model in the pipeline was trained
// against. The scaler is the source of truth for that contract.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// LoadScaler reads the fitted scaler artifact.
func LoadScaler(path string) (*Scaler, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler %s: %w", path, err)
	}
	var s Scaler
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if len(s.Features) == 0 || len(s.Mean) != len(s.Features) || len(s.Scale) != len(s.Features) {
		return nil, fmt.Errorf("scaler %s: mean/scale width does not match %d features", path, len(s.Features))
	}
	return &s, nil
}

// TargetIndex returns the column index of the AQI-like target dimension.
func (s *Scaler) TargetIndex() (int, error) {
	for i, name := range s.Features {
		if strings.Contains(strings.ToLower(name), "aqi") {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: scaler has no aqi-like feature", ErrFeatureMismatch)
}

// RegressionFeatures returns the canonical feature names with AQI-like
// fields excluded, in scaler order.
func (s *Scaler) RegressionFeatures() []string {
	out := make([]string, 0, len(s.Features))
	for _, name := range s.Features {
		if strings.Contains(strings.ToLower(name), "aqi") {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Transform standardizes each row in place-order: (x - mean) / scale.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		if len(row) != len(s.Features) {
			return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureMismatch, len(s.Features), len(row))
		}
		scaled := make([]float64, len(row))
		for i, v := range row {
			scaled[i] = (v - s.Mean[i]) / s.Scale[i]
		}
		out[r] = scaled
	}
	return out, nil
}

// InverseTransform maps standardized rows back to feature space.
func (s *Scaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		if len(row) != len(s.Features) {
			return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrFeatureMismatch, len(s.Features), len(row))
		}
		orig := make([]float64, len(row))
		for i, v := range row {
			orig[i] = v*s.Scale[i] + s.Mean[i]
		}
		out[r] = orig
	}
	return out, nil
}
