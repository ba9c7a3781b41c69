// Package sources implements the two read-only remote hourly data sources
// the gap filler consumes: the Open-Meteo weather archive and the
// Open-Meteo air-quality API. Both return hourly field arrays aligned on a
// shared time axis for a fixed coordinate pair and date range.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// WeatherFields are the hourly weather parameters requested from the
// archive API, in the order the canonical rename table expects.
var WeatherFields = []string{
	"temperature_2m", "relative_humidity_2m", "precipitation", "cloud_cover",
	"surface_pressure", "pressure_msl", "wind_speed_10m", "wind_direction_10m",
	"wind_gusts_10m", "uv_index",
}

// AirQualityFields are the hourly pollutant parameters requested from the
// air-quality API.
var AirQualityFields = []string{
	"pm10", "pm2_5", "carbon_monoxide", "nitrogen_dioxide", "sulphur_dioxide", "ozone",
}

// maxChunkDays bounds the date span of a single upstream request; longer
// gaps are fetched in consecutive chunks.
const maxChunkDays = 31

// hourlyTimeLayout is the timestamp format Open-Meteo uses in hourly arrays.
const hourlyTimeLayout = "2006-01-02T15:04"

// HourlyTable is a raw fetched table: one shared time axis, one value slice
// per requested field. Absent values are NaN.
type HourlyTable struct {
	Times  []time.Time
	Fields map[string][]float64
}

// HourlySource is the contract the gap filler depends on.
type HourlySource interface {
	Name() string
	FetchHourly(ctx context.Context, start, end time.Time) (HourlyTable, error)
}

// Client fetches hourly arrays from one Open-Meteo style endpoint for a
// fixed coordinate pair.
type Client struct {
	name    string
	baseURL string
	lat     float64
	lon     float64
	fields  []string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewWeatherArchiveClient builds the client for the historical weather API.
func NewWeatherArchiveClient(httpClient *http.Client, lat, lon float64) *Client {
	return newClient("weather-archive", "https://archive-api.open-meteo.com/v1/archive", httpClient, lat, lon, WeatherFields)
}

// NewAirQualityClient builds the client for the air-quality API.
func NewAirQualityClient(httpClient *http.Client, lat, lon float64) *Client {
	return newClient("air-quality", "https://air-quality-api.open-meteo.com/v1/air-quality", httpClient, lat, lon, AirQualityFields)
}

// NewClient builds a client against an arbitrary base URL. Tests point it at
// an httptest server.
func NewClient(name, baseURL string, httpClient *http.Client, lat, lon float64, fields []string) *Client {
	return newClient(name, baseURL, httpClient, lat, lon, fields)
}

func newClient(name, baseURL string, httpClient *http.Client, lat, lon float64, fields []string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		name:    name,
		baseURL: baseURL,
		lat:     lat,
		lon:     lon,
		fields:  fields,
		httpCfg: HTTPClientConfig{
			Client: httpClient,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (c *Client) Name() string { return c.name }

// FetchHourly fetches hourly arrays covering start..end (UTC). Requests
// spanning more than maxChunkDays are split into consecutive date windows so
// no single upstream call is unbounded.
func (c *Client) FetchHourly(ctx context.Context, start, end time.Time) (HourlyTable, error) {
	if end.Before(start) {
		return HourlyTable{}, fmt.Errorf("%w: %s: end %s before start %s", ErrUpstream, c.name, end, start)
	}

	table := HourlyTable{Fields: make(map[string][]float64, len(c.fields))}

	chunkStart := start
	for !chunkStart.After(end) {
		chunkEnd := chunkStart.AddDate(0, 0, maxChunkDays-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		chunk, err := c.fetchChunk(ctx, chunkStart, chunkEnd)
		if err != nil {
			return HourlyTable{}, err
		}

		table.Times = append(table.Times, chunk.Times...)
		for field, vals := range chunk.Fields {
			table.Fields[field] = append(table.Fields[field], vals...)
		}

		chunkStart = chunkEnd.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	}

	return table, nil
}

func (c *Client) fetchChunk(ctx context.Context, start, end time.Time) (HourlyTable, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", c.lat))
		values.Set("longitude", fmt.Sprintf("%.4f", c.lon))
		values.Set("start_date", start.UTC().Format("2006-01-02"))
		values.Set("end_date", end.UTC().Format("2006-01-02"))
		values.Set("hourly", strings.Join(c.fields, ","))
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return HourlyTable{}, fmt.Errorf("%w: %s: %v", ErrUpstream, c.name, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return HourlyTable{}, fmt.Errorf("%w: %s: decode response: %v", ErrUpstream, c.name, err)
	}
	if payload.Hourly == nil {
		return HourlyTable{}, fmt.Errorf("%w: %s: response has no hourly block", ErrUpstream, c.name)
	}

	var rawTimes []string
	if raw, ok := payload.Hourly["time"]; ok {
		if err := json.Unmarshal(raw, &rawTimes); err != nil {
			return HourlyTable{}, fmt.Errorf("%w: %s: decode time axis: %v", ErrUpstream, c.name, err)
		}
	}
	if len(rawTimes) == 0 {
		return HourlyTable{}, fmt.Errorf("%w: %s: empty time axis", ErrUpstream, c.name)
	}

	table := HourlyTable{
		Times:  make([]time.Time, len(rawTimes)),
		Fields: make(map[string][]float64, len(c.fields)),
	}
	for i, s := range rawTimes {
		ts, err := time.Parse(hourlyTimeLayout, s)
		if err != nil {
			return HourlyTable{}, fmt.Errorf("%w: %s: bad timestamp %q", ErrUpstream, c.name, s)
		}
		table.Times[i] = ts.UTC()
	}

	// Any requested field may be absent or carry nulls; both become NaN and
	// are left to the gap filler's fill policy.
	for _, field := range c.fields {
		vals := make([]float64, len(rawTimes))
		raw, ok := payload.Hourly[field]
		if !ok {
			for i := range vals {
				vals[i] = math.NaN()
			}
			table.Fields[field] = vals
			continue
		}

		var ptrs []*float64
		if err := json.Unmarshal(raw, &ptrs); err != nil {
			return HourlyTable{}, fmt.Errorf("%w: %s: decode field %s: %v", ErrUpstream, c.name, field, err)
		}
		for i := range vals {
			if i < len(ptrs) && ptrs[i] != nil {
				vals[i] = *ptrs[i]
			} else {
				vals[i] = math.NaN()
			}
		}
		table.Fields[field] = vals
	}

	return table, nil
}
