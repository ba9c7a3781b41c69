package model

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when an artifact failed to load at
	// startup and an endpoint depending on it is invoked anyway.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrFeatureMismatch is returned when an input vector's fields disagree
	// with the schema a model was trained on.
	ErrFeatureMismatch = errors.New("feature mismatch")
)

// Predictor abstracts a trained model behind a uniform vector-in,
// vector-out contract so backend artifact formats stay swappable.
// Each row of the batch is one input vector; the result has one output
// vector per input row.
type Predictor interface {
	Name() string
	Predict(batch [][]float64) ([][]float64, error)
}

// Unavailable wraps ErrModelUnavailable with the name of the missing
// capability so API responses can report what exactly is down.
func Unavailable(capability string) error {
	return fmt.Errorf("%w: %s", ErrModelUnavailable, capability)
}

// VectorFromValues assembles an ordered vector from a named value map.
// A missing name is a hard failure, never a silent zero-fill: the feature
// order contract is exact.
func VectorFromValues(values map[string]float64, names []string) ([]float64, error) {
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing feature %q", ErrFeatureMismatch, name)
		}
		vec[i] = v
	}
	return vec, nil
}
