package aqi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqicast/internal/model"
)

// riskRegistry builds a registry whose personal risk model is
// perceived = factor * ambient.
func riskRegistry(factor float64) *model.Registry {
	risk := model.NewLinearModel(
		"personal-risk",
		model.PersonalRiskFeatures,
		[]string{"perceived_aqi"},
		[][]float64{{factor, 0, 0, 0}},
		[]float64{0},
	)
	return model.NewRegistry(nil, nil, nil, risk, nil)
}

func intPtr(v int) *int { return &v }

func TestAdjustEmptyProfile(t *testing.T) {
	a := NewAdjuster(riskRegistry(2))

	for _, profile := range []*Profile{nil, {}, {Conditions: "   "}} {
		adj, err := a.Adjust(120, profile)
		require.NoError(t, err)
		assert.Nil(t, adj, "profile without age or conditions must produce no adjustment")
	}
}

func TestAdjustPerceivedNeverBelowAmbient(t *testing.T) {
	// Model predicting below ambient: the ambient value must win.
	a := NewAdjuster(riskRegistry(0.5))

	adj, err := a.Adjust(100, &Profile{Age: intPtr(40)})
	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, 100.0, adj.Perceived)

	// Model predicting above ambient passes through.
	a = NewAdjuster(riskRegistry(1.5))
	adj, err = a.Adjust(100, &Profile{Age: intPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, 150.0, adj.Perceived)
}

func TestAdjustAdviceRules(t *testing.T) {
	a := NewAdjuster(riskRegistry(1))

	// Age over 60 in a sensitive category.
	adj, err := a.Adjust(160, &Profile{Age: intPtr(65)})
	require.NoError(t, err)
	assert.Contains(t, adj.Advice, "Given your age")

	// Respiratory keyword match, case-insensitive.
	adj, err = a.Adjust(160, &Profile{Conditions: "Asthma"})
	require.NoError(t, err)
	assert.Contains(t, adj.Advice, "respiratory condition")

	// Cardiac keyword match.
	adj, err = a.Adjust(160, &Profile{Conditions: "chronic heart disease"})
	require.NoError(t, err)
	assert.Contains(t, adj.Advice, "heart condition")

	// Multiple triggers concatenate.
	adj, err = a.Adjust(160, &Profile{Age: intPtr(70), Conditions: "copd and cardiovascular issues"})
	require.NoError(t, err)
	assert.Contains(t, adj.Advice, "Given your age")
	assert.Contains(t, adj.Advice, "respiratory condition")
	assert.Contains(t, adj.Advice, "heart condition")

	// No trigger falls back to the generic reassurance, not an empty string.
	adj, err = a.Adjust(40, &Profile{Age: intPtr(30)})
	require.NoError(t, err)
	assert.Contains(t, adj.Advice, "should not pose a significant additional risk")
}

func TestAdjustConditionsOutsideSensitiveRange(t *testing.T) {
	a := NewAdjuster(riskRegistry(1))

	// Keywords alone do not warn when the category is below sensitive.
	adj, err := a.Adjust(80, &Profile{Conditions: "asthma"})
	require.NoError(t, err)
	assert.NotContains(t, adj.Advice, "respiratory condition puts you at high risk")
}

func TestAdjustModelUnavailable(t *testing.T) {
	a := NewAdjuster(model.NewRegistry(nil, nil, nil, nil, nil))

	_, err := a.Adjust(100, &Profile{Age: intPtr(40)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrModelUnavailable))
}
