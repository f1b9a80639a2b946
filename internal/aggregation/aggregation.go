// Package aggregation turns workout history into per-exercise progress series.
//
// Everything here is a pure function of its input. Series are lazy and
// restartable: ranging over the same Seq twice re-reads the history slice, so a
// caller holding a Seq sees later edits to that slice.
package aggregation

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"example.com/fittracker/internal/domain"
)

// Metric selects how a workout's sets reduce to a single value.
type Metric string

const (
	MetricWeight       Metric = "weight"
	MetricVolume       Metric = "volume"
	MetricReps         Metric = "reps"
	MetricEstimatedMax Metric = "estimated-max"
)

// Metrics lists the supported selectors in display order.
var Metrics = []Metric{MetricWeight, MetricVolume, MetricReps, MetricEstimatedMax}

// ParseMetric validates a metric selector.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Metrics, m) {
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, s)
}

// epleyCutoff is the rep count above which the estimate is not trusted.
const epleyCutoff = 12

// Point is one workout's contribution to a series.
type Point struct {
	WorkoutID string  `json:"workoutId"`
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
}

// Summary is a series plus the figures derived from it.
type Summary struct {
	Exercise     string  `json:"exercise"`
	Metric       Metric  `json:"metric"`
	Points       []Point `json:"points"`
	PersonalBest float64 `json:"personalBest"`
	Current      float64 `json:"current"`
	TotalSets    int     `json:"totalSets"`
	TotalReps    int     `json:"totalReps"`
	TotalVolume  float64 `json:"totalVolume"`
}

// Series yields one Point per workout, in sort-key order, for every workout whose
// reduced value for exercise is strictly positive.
func Series(history []domain.WorkoutHistoryEntry, exercise string, metric Metric) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for _, entry := range ordered(history) {
			sets := completedSets(entry, exercise)
			if len(sets) == 0 {
				continue
			}
			value := reduce(sets, metric)
			if value <= 0 {
				continue
			}
			if !yield(Point{WorkoutID: entry.ID, Date: entry.Date, Value: value}) {
				return
			}
		}
	}
}

// Summarize collects Series and derives the personal best, the current value
// and the set totals.
func Summarize(history []domain.WorkoutHistoryEntry, exercise string, metric Metric) Summary {
	s := Summary{Exercise: exercise, Metric: metric, Points: []Point{}}
	for p := range Series(history, exercise, metric) {
		if len(s.Points) == 0 || p.Value > s.PersonalBest {
			s.PersonalBest = p.Value
		}
		s.Current = p.Value
		s.Points = append(s.Points, p)
	}
	for _, entry := range history {
		for _, set := range completedSets(entry, exercise) {
			s.TotalSets++
			s.TotalReps += set.Reps
			s.TotalVolume += set.Weight * float64(set.Reps)
		}
	}
	return s
}

// Exercises returns the distinct exercise names found in history, sorted
// case-insensitively. The first spelling seen wins.
func Exercises(history []domain.WorkoutHistoryEntry) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, entry := range ordered(history) {
		for _, ex := range entry.Exercises {
			key := strings.ToLower(strings.TrimSpace(ex.Name))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, strings.TrimSpace(ex.Name))
		}
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return names
}

// ordered returns a copy of history sorted by numeric key (SortKey, else ID).
// Keys that do not parse sort as zero; equal keys keep their input order.
func ordered(history []domain.WorkoutHistoryEntry) []domain.WorkoutHistoryEntry {
	out := slices.Clone(history)
	slices.SortStableFunc(out, func(a, b domain.WorkoutHistoryEntry) int {
		return cmp.Compare(sortKey(a), sortKey(b))
	})
	return out
}

func sortKey(entry domain.WorkoutHistoryEntry) float64 {
	key := entry.SortKey
	if key == "" {
		key = entry.ID
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func completedSets(entry domain.WorkoutHistoryEntry, exercise string) []domain.SetLog {
	var sets []domain.SetLog
	for _, ex := range entry.Exercises {
		if !strings.EqualFold(strings.TrimSpace(ex.Name), strings.TrimSpace(exercise)) {
			continue
		}
		for _, set := range ex.Sets {
			if set.IsCompleted() {
				sets = append(sets, set)
			}
		}
	}
	return sets
}

func reduce(sets []domain.SetLog, metric Metric) float64 {
	switch metric {
	case MetricVolume:
		var total float64
		for _, set := range sets {
			total += set.Weight * float64(set.Reps)
		}
		return total
	case MetricReps:
		return firstMax(sets, func(s domain.SetLog) float64 { return float64(s.Reps) })
	case MetricEstimatedMax:
		return firstMax(sets, EstimatedMax)
	default:
		return firstMax(sets, func(s domain.SetLog) float64 { return s.Weight })
	}
}

// firstMax returns the largest f over sets; on ties the earliest set wins.
func firstMax(sets []domain.SetLog, f func(domain.SetLog) float64) float64 {
	best := f(sets[0])
	for _, set := range sets[1:] {
		if v := f(set); v > best {
			best = v
		}
	}
	return best
}

// EstimatedMax is the Epley one-rep-max estimate for a single set. Singles and
// sets above twelve reps report the lifted weight unchanged.
func EstimatedMax(set domain.SetLog) float64 {
	if set.Reps == 1 || set.Reps > epleyCutoff {
		return set.Weight
	}
	return set.Weight * (1 + float64(set.Reps)/30)
}
