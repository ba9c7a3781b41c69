package httpapi

import (
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/airsense/aqicast/internal/aqi"
	"github.com/airsense/aqicast/internal/model"
	"github.com/airsense/aqicast/internal/pipeline"
	"github.com/airsense/aqicast/internal/sources"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *pipeline.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/features", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"features": service.RegressionFeatures()})
	})

	v1.Post("/predict", func(c *fiber.Ctx) error {
		var req predictRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if len(req.Features) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "features map is required")
		}

		result, err := service.PredictAmbient(req.Features, req.Profile)
		if err != nil {
			return mapPipelineError(err)
		}

		payload := fiber.Map{
			"aqi":      round2(result.AQI),
			"category": result.Category.Label,
			"color":    result.Category.Color,
			"advice":   result.Category.Description,
			"icon":     result.Category.Icon,
		}
		if result.Adjustment != nil {
			payload["perceivedAqi"] = round2(result.Adjustment.Perceived)
			payload["personalAdvice"] = result.Adjustment.Advice
		}
		return c.JSON(payload)
	})

	v1.Post("/forecast", func(c *fiber.Ctx) error {
		req := forecastRequest{Hours: 24}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.Forecast(c.Context(), time.Now().UTC(), req.Hours, req.Profile)
		if err != nil {
			return mapPipelineError(err)
		}
		return c.JSON(result)
	})

	v1.Get("/current", func(c *fiber.Ctx) error {
		latest, err := service.Latest(c.Context(), time.Now().UTC())
		if err != nil {
			return mapPipelineError(err)
		}
		return c.JSON(fiber.Map{
			"timestamp": latest.Timestamp,
			"data":      latest.Values,
		})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		req := historyQuery{Days: c.QueryInt("days", 7)}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		points, err := service.History(c.Context(), time.Now().UTC(), req.Days)
		if err != nil {
			return mapPipelineError(err)
		}
		return c.JSON(points)
	})

	v1.Get("/analytics", func(c *fiber.Ctx) error {
		var start, end time.Time
		var err error
		if s := c.Query("start"); s != "" {
			if start, err = parseTime(s); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		if s := c.Query("end"); s != "" {
			if end, err = parseTime(s); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}

		analytics, err := service.Analytics(start, end)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(analytics)
	})
}

// predictRequest carries a canonical feature map plus an optional inline
// profile; the module does not own user accounts.
type predictRequest struct {
	Features map[string]float64 `json:"features"`
	Profile  *aqi.Profile       `json:"profile"`
}

type forecastRequest struct {
	Hours   int          `json:"hours" validate:"min=1,max=72"`
	Profile *aqi.Profile `json:"profile"`
}

type historyQuery struct {
	Days int `validate:"min=1,max=30"`
}

// mapPipelineError translates the typed pipeline failures onto HTTP status
// codes.
func mapPipelineError(err error) error {
	switch {
	case errors.Is(err, model.ErrModelUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, sources.ErrUpstream), errors.Is(err, pipeline.ErrGapTooLarge):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, model.ErrFeatureMismatch), errors.Is(err, pipeline.ErrInsufficientHistory):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// parseTime tries to parse either RFC3339 or a plain date.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or YYYY-MM-DD")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
