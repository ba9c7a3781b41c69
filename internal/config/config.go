package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
)

// Default coordinates: Kathmandu.
const (
	defaultLatitude  = 27.7172
	defaultLongitude = 85.3240
)

type AppConfig struct {
	// Coordinate pair every remote fetch is keyed on.
	Latitude  float64
	Longitude float64

	// Model artifacts and static data.
	ModelDir     string
	BaselinePath string

	// Live cache.
	CachePath string
	CacheTTL  time.Duration

	// Outbound HTTP.
	HTTPTimeout time.Duration

	// Largest baseline-to-now gap the filler will attempt.
	MaxGap time.Duration

	// RefreshInterval controls how often the scheduler warms the cache.
	RefreshInterval time.Duration

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	lat, lon, err := loadCoordinates()
	if err != nil {
		return nil, err
	}
	cfg.Latitude = lat
	cfg.Longitude = lon

	cfg.ModelDir = getenvDefault("MODEL_DIR", "models")
	cfg.BaselinePath = getenvDefault("BASELINE_PATH", "data/processed/baseline.csv")
	cfg.CachePath = getenvDefault("CACHE_PATH", "data/cache/live_series.json")

	ttlStr := getenvDefault("CACHE_TTL", "1h")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = ttl

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "15s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	// Default bound: 180 days of hourly rows.
	maxGapStr := getenvDefault("MAX_GAP", "4320h")
	maxGap, err := time.ParseDuration(maxGapStr)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_GAP: %w", err)
	}
	cfg.MaxGap = maxGap

	refreshStr := getenvDefault("REFRESH_INTERVAL", "30m")
	refresh, err := time.ParseDuration(refreshStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = refresh

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// loadCoordinates prefers explicit AQI_LAT/AQI_LON; when only a city is
// configured it falls back to geocoding (requires GEOCODER_API_KEY).
func loadCoordinates() (float64, float64, error) {
	latStr, lonStr := os.Getenv("AQI_LAT"), os.Getenv("AQI_LON")
	if latStr != "" && lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid AQI_LAT: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid AQI_LON: %w", err)
		}
		return lat, lon, nil
	}

	city := os.Getenv("AQI_LOCATION_CITY")
	if city != "" {
		geocoder.ApiKey = os.Getenv("GEOCODER_API_KEY")
		if geocoder.ApiKey == "" {
			return 0, 0, fmt.Errorf("AQI_LOCATION_CITY set but GEOCODER_API_KEY missing")
		}
		addr := geocoder.Address{
			City:    city,
			Country: os.Getenv("AQI_LOCATION_COUNTRY"),
		}
		loc, err := geocoder.Geocoding(addr)
		if err != nil {
			return 0, 0, fmt.Errorf("geocoding %q failed: %w", city, err)
		}
		return loc.Latitude, loc.Longitude, nil
	}

	return defaultLatitude, defaultLongitude, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
