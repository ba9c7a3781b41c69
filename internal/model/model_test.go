package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearModelPredict(t *testing.T) {
	m := NewLinearModel(
		"toy",
		[]string{"a", "b"},
		[]string{"x", "y"},
		[][]float64{{1, 2}, {0, -1}},
		[]float64{10, 0},
	)

	out, err := m.Predict([][]float64{{3, 4}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{21, -4}, out[0])
}

func TestLinearModelWidthMismatch(t *testing.T) {
	m := NewLinearModel("toy", []string{"a", "b"}, []string{"x"}, [][]float64{{1, 1}}, []float64{0})

	_, err := m.Predict([][]float64{{1, 2, 3}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestVectorFromValues(t *testing.T) {
	values := map[string]float64{"a": 1, "b": 2, "c": 3}

	vec, err := VectorFromValues(values, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, vec)

	_, err = VectorFromValues(values, []string{"a", "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFeatureMismatch), "missing feature must fail, not zero-fill")
}

func TestScalerContract(t *testing.T) {
	s := &Scaler{
		Features: []string{"aqi", "temp_c", "hour"},
		Mean:     []float64{100, 20, 12},
		Scale:    []float64{50, 10, 6},
	}

	idx, err := s.TargetIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	assert.Equal(t, []string{"temp_c", "hour"}, s.RegressionFeatures())

	scaled, err := s.Transform([][]float64{{150, 30, 18}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, scaled[0])

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{150, 30, 18}, back[0], 1e-9)

	_, err = s.Transform([][]float64{{1, 2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestValidateNamesOrderSensitive(t *testing.T) {
	err := validateNames("m", []string{"a", "b"}, []string{"b", "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFeatureMismatch), "reordered features must be rejected, never silently reindexed")
}

func TestRegistryUnavailable(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil, nil)

	_, err := r.Regressor()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.Contains(t, err.Error(), "aqi regression model")

	_, err = r.Sequence()
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}
