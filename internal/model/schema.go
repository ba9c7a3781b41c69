package model

import "fmt"

// Canonical feature names, declared statically in the exact order the
// pipeline's models were trained on. The fitted scaler artifact must agree
// with this list; any disagreement disables the dependent models at load
// time instead of surfacing mid-inference.
var CanonicalFeatures = []string{
	FeatureAQI,
	"temp_c",
	"humidity_pct",
	"precipitation_mm",
	"cloud_cover_pct",
	"surface_pressure_hpa",
	"pressure_msl_hpa",
	"wind_speed_kmh",
	"wind_direction_deg",
	"wind_gusts_kmh",
	"uv_index",
	"pm10_ugm3",
	"pm2_5_ugm3",
	"co_ugm3",
	"no2_ugm3",
	"so2_ugm3",
	"o3_ugm3",
	"soil_temp_c",
	"soil_moisture_m3m3",
	"hour",
	"month",
}

const (
	FeatureAQI          = "aqi"
	FeatureSoilTemp     = "soil_temp_c"
	FeatureSoilMoisture = "soil_moisture_m3m3"
	FeatureHour         = "hour"
	FeatureMonth        = "month"
)

// SoilImputerFeatures is the exact ordered input contract of the soil
// imputation model.
var SoilImputerFeatures = []string{"temp_c", "uv_index", "cloud_cover_pct", "hour", "month"}

// SoilImputerOutputs is the ordered output contract of the soil imputer.
var SoilImputerOutputs = []string{FeatureSoilTemp, FeatureSoilMoisture}

// PersonalRiskFeatures is the ordered input contract of the personal risk
// model.
var PersonalRiskFeatures = []string{"ambient_aqi", "age", "has_respiratory_condition", "has_heart_condition"}

// validateNames checks that got matches want exactly, names and order both.
func validateNames(what string, got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: %s has %d features, want %d", ErrFeatureMismatch, what, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: %s feature %d is %q, want %q", ErrFeatureMismatch, what, i, got[i], want[i])
		}
	}
	return nil
}
