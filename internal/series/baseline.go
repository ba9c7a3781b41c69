package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"
)

// Baseline timestamp layouts accepted in the first CSV column.
var baselineTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// LoadBaseline reads the immutable historical observation series from a CSV
// file. The first column is the UTC timestamp; remaining header names are
// the canonical feature columns. The baseline is loaded once at startup and
// never mutated; it is the permanent left edge of every assembled series.
func LoadBaseline(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open baseline %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read baseline header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("baseline %s: need a timestamp column plus features", path)
	}
	columns := header[1:]

	var obs []Observation
	var prev time.Time
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("baseline line %d: %w", line, err)
		}
		ts, err := parseBaselineTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("baseline line %d: %w", line, err)
		}
		if !prev.IsZero() && !ts.After(prev) {
			return nil, fmt.Errorf("baseline line %d: timestamps not strictly increasing", line)
		}
		prev = ts

		values := make(map[string]float64, len(columns))
		for i, col := range columns {
			cell := rec[i+1]
			if cell == "" {
				values[col] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("baseline line %d, column %s: %w", line, col, err)
			}
			values[col] = v
		}
		obs = append(obs, Observation{Timestamp: ts, Values: values})
	}

	if len(obs) == 0 {
		return nil, fmt.Errorf("baseline %s: no observations", path)
	}
	return &Series{Columns: columns, Observations: obs}, nil
}

func parseBaselineTime(s string) (time.Time, error) {
	for _, layout := range baselineTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
