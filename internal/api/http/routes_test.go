package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/pipeline"
	"github.com/airsense/aqicast/internal/series"
)

type emptyProvider struct{}

func (emptyProvider) Current(ctx context.Context, now time.Time) (*series.Series, error) {
	return &series.Series{}, nil
}

func newTestApp(registry *model.Registry) *fiber.App {
	app := fiber.New()
	svc := pipeline.NewService(registry, emptyProvider{}, &series.Series{})
	RegisterRoutes(app, svc)
	return app
}

func smallRegistry() *model.Registry {
	scaler := &model.Scaler{
		Features: []string{"aqi", "temp_c", "hour"},
		Mean:     []float64{0, 0, 0},
		Scale:    []float64{1, 1, 1},
	}
	regressor := model.NewLinearModel(
		"aqi-regressor", []string{"temp_c", "hour"}, []string{"aqi"},
		[][]float64{{0, 0}}, []float64{42},
	)
	return model.NewRegistry(scaler, regressor, nil, nil, nil)
}

func TestPredictValidation(t *testing.T) {
	app := newTestApp(smallRegistry())

	// Missing body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Empty features map.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{"features":{}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredictHappyPath(t *testing.T) {
	app := newTestApp(smallRegistry())

	body := `{"features":{"temp_c":21.5,"hour":13}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, 42.0, payload["aqi"])
	assert.Equal(t, "Good", payload["category"])
	assert.NotContains(t, payload, "perceivedAqi")
}

func TestPredictFeatureMismatch(t *testing.T) {
	app := newTestApp(smallRegistry())

	body := `{"features":{"temp_c":21.5,"unknown_field":1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPredictModelUnavailable(t *testing.T) {
	app := newTestApp(model.NewRegistry(nil, nil, nil, nil, nil))

	body := `{"features":{"temp_c":21.5}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestForecastHoursValidation(t *testing.T) {
	app := newTestApp(smallRegistry())

	for _, body := range []string{`{"hours":0}`, `{"hours":100}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/forecast", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body=%s", body)
	}
}

func TestHistoryDaysValidation(t *testing.T) {
	app := newTestApp(smallRegistry())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?days=99", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFeaturesEndpoint(t *testing.T) {
	app := newTestApp(smallRegistry())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/features", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Features []string `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []string{"temp_c", "hour"}, payload.Features)
}
