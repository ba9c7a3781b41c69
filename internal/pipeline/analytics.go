package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/airsense/aqicast/internal/aqi"
	"github.com/airsense/aqicast/internal/model"
)

// LabeledSeries pairs chart labels with their values.
type LabeledSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// AnalyticsStats summarizes the AQI distribution over the selected range.
type AnalyticsStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
	Min    float64 `json:"min"`
}

// Analytics is the exploratory aggregation payload computed over the static
// baseline.
type Analytics struct {
	AQIOverTime LabeledSeries  `json:"aqiOverTime"` // daily means
	Dist        LabeledSeries  `json:"dist"`        // 20-bin histogram
	Categories  LabeledSeries  `json:"categories"`  // category counts
	Stats       AnalyticsStats `json:"stats"`
	ByMonth     LabeledSeries  `json:"byMonth"`
	ByWeekday   LabeledSeries  `json:"byWeekday"`
	ByHour      LabeledSeries  `json:"byHour"`
}

const analyticsBins = 20

// Analytics aggregates the baseline's AQI column over [start, end]. A zero
// end defaults to the baseline's last timestamp; a zero start defaults to
// one year before end.
func (s *Service) Analytics(start, end time.Time) (*Analytics, error) {
	last, ok := s.baseline.Last()
	if !ok {
		return nil, fmt.Errorf("baseline series is empty")
	}
	if end.IsZero() {
		end = last.Timestamp
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}

	window := s.baseline.Slice(start, end)

	var values []float64
	var stamps []time.Time
	for _, obs := range window {
		v, okv := obs.Values[model.FeatureAQI]
		if !okv || math.IsNaN(v) {
			continue
		}
		values = append(values, v)
		stamps = append(stamps, obs.Timestamp)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("no data available for the selected date range")
	}

	a := &Analytics{
		AQIOverTime: dailyMeans(stamps, values),
		Dist:        histogram(values),
		Categories:  categoryCounts(values),
		Stats:       summarize(values),
		ByMonth:     groupMeans(stamps, values, func(ts time.Time) string { return ts.Month().String() }, monthOrder),
		ByWeekday:   groupMeans(stamps, values, func(ts time.Time) string { return ts.Weekday().String() }, weekdayOrder),
		ByHour:      groupMeans(stamps, values, func(ts time.Time) string { return fmt.Sprintf("%02d:00", ts.Hour()) }, hourOrder()),
	}
	return a, nil
}

var monthOrder = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var weekdayOrder = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

func hourOrder() []string {
	out := make([]string, 24)
	for h := range out {
		out[h] = fmt.Sprintf("%02d:00", h)
	}
	return out
}

func dailyMeans(stamps []time.Time, values []float64) LabeledSeries {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, ts := range stamps {
		day := ts.Format("2006-01-02")
		sums[day] += values[i]
		counts[day]++
	}

	days := make([]string, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Strings(days)

	out := LabeledSeries{Labels: days, Values: make([]float64, len(days))}
	for i, day := range days {
		out.Values[i] = round2(sums[day] / float64(counts[day]))
	}
	return out
}

func histogram(values []float64) LabeledSeries {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	width := (hi - lo) / analyticsBins
	if width == 0 {
		width = 1
	}

	counts := make([]float64, analyticsBins)
	labels := make([]string, analyticsBins)
	for _, v := range values {
		bin := int((v - lo) / width)
		if bin >= analyticsBins {
			bin = analyticsBins - 1
		}
		counts[bin]++
	}
	for i := range labels {
		labels[i] = fmt.Sprintf("%d-%d", int(lo+float64(i)*width), int(lo+float64(i+1)*width))
	}
	return LabeledSeries{Labels: labels, Values: counts}
}

func categoryCounts(values []float64) LabeledSeries {
	counts := make(map[string]float64)
	for _, v := range values {
		counts[aqi.Categorize(v).Label]++
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return counts[labels[i]] > counts[labels[j]] })

	out := LabeledSeries{Labels: labels, Values: make([]float64, len(labels))}
	for i, label := range labels {
		out.Values[i] = counts[label]
	}
	return out
}

func summarize(values []float64) AnalyticsStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	return AnalyticsStats{
		Mean:   round2(sum / float64(len(sorted))),
		Median: round2(median),
		Max:    round2(sorted[len(sorted)-1]),
		Min:    round2(sorted[0]),
	}
}

func groupMeans(stamps []time.Time, values []float64, keyFn func(time.Time) string, order []string) LabeledSeries {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, ts := range stamps {
		k := keyFn(ts)
		sums[k] += values[i]
		counts[k]++
	}

	var out LabeledSeries
	for _, k := range order {
		if counts[k] == 0 {
			continue
		}
		out.Labels = append(out.Labels, k)
		out.Values = append(out.Values, round2(sums[k]/float64(counts[k])))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
