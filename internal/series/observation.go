// Package series holds the hourly observation series the pipeline is built
// around: an immutable historical baseline on the left, live gap-filled
// rows on the right, merged with last-writer-wins semantics.
package series

import (
	"sort"
	"time"
)

// Observation is one hourly record keyed by UTC timestamp. Values are keyed
// by canonical feature names.
type Observation struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Series is an ordered hourly observation table with a fixed column set.
// Timestamps are strictly increasing and unique.
type Series struct {
	Columns      []string
	Observations []Observation
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Observations) }

// Last returns the most recent observation. ok is false for an empty series.
func (s *Series) Last() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// Tail returns the trailing n observations (fewer when the series is short).
func (s *Series) Tail(n int) []Observation {
	if n >= len(s.Observations) {
		return s.Observations
	}
	return s.Observations[len(s.Observations)-n:]
}

// ContiguousTail returns the trailing n observations and reports whether
// they form a gap-free hourly run of exactly n rows.
func (s *Series) ContiguousTail(n int) ([]Observation, bool) {
	tail := s.Tail(n)
	if len(tail) < n {
		return tail, false
	}
	for i := 1; i < len(tail); i++ {
		if tail[i].Timestamp.Sub(tail[i-1].Timestamp) != time.Hour {
			return tail, false
		}
	}
	return tail, true
}

// Slice returns observations with from <= ts <= to.
func (s *Series) Slice(from, to time.Time) []Observation {
	lo := sort.Search(len(s.Observations), func(i int) bool {
		return !s.Observations[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(s.Observations), func(i int) bool {
		return s.Observations[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil
	}
	return s.Observations[lo:hi]
}

// Upto returns a copy-free view of observations with ts <= to.
func (s *Series) Upto(to time.Time) []Observation {
	hi := sort.Search(len(s.Observations), func(i int) bool {
		return s.Observations[i].Timestamp.After(to)
	})
	return s.Observations[:hi]
}

// Merge concatenates the baseline with live observations and deduplicates
// by timestamp. On conflict the live (later-loaded) value wins. Live rows
// are projected onto the baseline's column set.
func Merge(baseline *Series, live []Observation) *Series {
	merged := make([]Observation, 0, baseline.Len()+len(live))
	byTS := make(map[int64]int, baseline.Len()+len(live))

	add := func(obs Observation, project bool) {
		if project {
			vals := make(map[string]float64, len(baseline.Columns))
			for _, col := range baseline.Columns {
				if v, ok := obs.Values[col]; ok {
					vals[col] = v
				}
			}
			obs = Observation{Timestamp: obs.Timestamp, Values: vals}
		}
		key := obs.Timestamp.Unix()
		if i, exists := byTS[key]; exists {
			merged[i] = obs
			return
		}
		byTS[key] = len(merged)
		merged = append(merged, obs)
	}

	for _, obs := range baseline.Observations {
		add(obs, false)
	}
	for _, obs := range live {
		add(obs, true)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	return &Series{Columns: baseline.Columns, Observations: merged}
}
