package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/airsense/aqicast/internal/series"
)

var errEmptyBaseline = errors.New("static baseline is not loaded")

// snapshotFile is the durable cache representation: a creation epoch in
// fractional seconds plus the series as an ordered split table with
// millisecond-epoch row keys. NaN cells round-trip as null.
type snapshotFile struct {
	Timestamp float64       `json:"timestamp"`
	Data      snapshotTable `json:"data"`
}

type snapshotTable struct {
	Columns []string     `json:"columns"`
	Index   []int64      `json:"index"`
	Data    [][]*float64 `json:"data"`
}

// persist atomically writes the snapshot next to its final path.
func (c *LiveCache) persist(snap *snapshot) error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	file := snapshotFile{
		Timestamp: float64(snap.createdAt.UnixNano()) / float64(time.Second),
		Data: snapshotTable{
			Columns: snap.series.Columns,
			Index:   make([]int64, snap.series.Len()),
			Data:    make([][]*float64, snap.series.Len()),
		},
	}
	for i, obs := range snap.series.Observations {
		file.Data.Index[i] = obs.Timestamp.UnixMilli()
		row := make([]*float64, len(snap.series.Columns))
		for j, col := range snap.series.Columns {
			if v, ok := obs.Values[col]; ok && !math.IsNaN(v) {
				v := v
				row[j] = &v
			}
		}
		file.Data.Data[i] = row
	}

	raw, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode cache snapshot: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache snapshot: %w", err)
	}
	return nil
}

func readSnapshotFile(path string) (*snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file snapshotFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse cache file %s: %w", path, err)
	}
	if len(file.Data.Index) != len(file.Data.Data) {
		return nil, fmt.Errorf("cache file %s: index and data lengths disagree", path)
	}

	s := &series.Series{
		Columns:      file.Data.Columns,
		Observations: make([]series.Observation, len(file.Data.Index)),
	}
	for i, ms := range file.Data.Index {
		row := file.Data.Data[i]
		if len(row) != len(file.Data.Columns) {
			return nil, fmt.Errorf("cache file %s: row %d has %d cells, want %d", path, i, len(row), len(file.Data.Columns))
		}
		values := make(map[string]float64, len(row))
		for j, col := range file.Data.Columns {
			if row[j] != nil {
				values[col] = *row[j]
			} else {
				values[col] = math.NaN()
			}
		}
		s.Observations[i] = series.Observation{Timestamp: time.UnixMilli(ms).UTC(), Values: values}
	}

	sec, frac := math.Modf(file.Timestamp)
	createdAt := time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	return &snapshot{createdAt: createdAt, series: s}, nil
}
