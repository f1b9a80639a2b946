package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/aggregation"
	"example.com/fittracker/internal/auth"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
	"example.com/fittracker/internal/remote"
)

func offlineRemotes() Remotes {
	return Remotes{
		Foods:    remote.Offline[domain.FoodEntry]{},
		Progress: remote.Offline[domain.WeightEntry]{},
		Goals:    remote.Offline[domain.Goals]{},
		Workouts: remote.Offline[domain.WorkoutLog]{},
	}
}

func newTestTracker(t *testing.T, kv localstore.KV, owner string) *Tracker {
	t.Helper()
	tr := New(kv, offlineRemotes(), auth.StaticToken("token"), owner,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }))
	t.Cleanup(tr.Wait)
	return tr
}

func TestCollectionsAreScopedByOwner(t *testing.T) {
	kv := localstore.NewMemoryKV()
	alice := newTestTracker(t, kv, "alice")
	bob := newTestTracker(t, kv, "bob")

	_, task, err := alice.Foods.Add(context.Background(), domain.FoodEntry{Name: "Oats", Calories: 300, ConsumedOn: "2024-01-01"})
	require.NoError(t, err)
	require.Equal(t, domain.AppliedLocalOnly, task.Wait().Result)

	require.Len(t, alice.Foods.List(), 1)
	require.Empty(t, bob.Foods.List())

	_, ok, err := kv.Get("foods:alice")
	require.NoError(t, err)
	require.True(t, ok)

	// A fresh tracker for the same owner reads the persisted log.
	require.Len(t, newTestTracker(t, kv, "alice").Foods.List(), 1)
}

func TestSaveGoalsKeepsSingleRecord(t *testing.T) {
	tr := newTestTracker(t, localstore.NewMemoryKV(), "alice")

	_, ok := tr.CurrentGoals()
	require.False(t, ok)

	first, task, err := tr.SaveGoals(context.Background(), domain.Goals{DailyCalories: 2200})
	require.NoError(t, err)
	task.Wait()

	second, task, err := tr.SaveGoals(context.Background(), domain.Goals{DailyCalories: 2000, ProteinG: 140})
	require.NoError(t, err)
	task.Wait()

	require.Equal(t, first.ID, second.ID)
	require.Len(t, tr.Goals.List(), 1)
	current, ok := tr.CurrentGoals()
	require.True(t, ok)
	require.InDelta(t, 2000, current.Payload.DailyCalories, 0.0001)
}

func TestTotals(t *testing.T) {
	tr := newTestTracker(t, localstore.NewMemoryKV(), "alice")
	ctx := context.Background()

	for _, f := range []domain.FoodEntry{
		{Name: "Oats", Calories: 300, ProteinG: 10, ConsumedOn: "2024-01-01"},
		{Name: "Eggs", Calories: 70, ProteinG: 6, Servings: 3, ConsumedOn: "2024-01-01"},
		{Name: "Pizza", Calories: 800, ConsumedOn: "2024-01-02"},
	} {
		_, _, err := tr.Foods.Add(ctx, f)
		require.NoError(t, err)
	}

	totals := tr.Totals("2024-01-01")
	require.Equal(t, 2, totals.Entries)
	require.InDelta(t, 510, totals.Calories, 0.0001)
	require.InDelta(t, 28, totals.ProteinG, 0.0001)
	require.Zero(t, totals.Remaining)

	_, _, err := tr.SaveGoals(ctx, domain.Goals{DailyCalories: 2000})
	require.NoError(t, err)
	require.InDelta(t, 1490, tr.Totals("2024-01-01").Remaining, 0.0001)
	require.Len(t, tr.FoodsOn("2024-01-02"), 1)
}

func TestLatestWeight(t *testing.T) {
	tr := newTestTracker(t, localstore.NewMemoryKV(), "alice")
	_, ok := tr.LatestWeight()
	require.False(t, ok)

	for _, w := range []domain.WeightEntry{
		{Weight: 82, Unit: domain.UnitKilograms, MeasuredOn: "2024-01-03"},
		{Weight: 80, Unit: domain.UnitKilograms, MeasuredOn: "2024-01-09"},
		{Weight: 81, Unit: domain.UnitKilograms, MeasuredOn: "2024-01-05"},
	} {
		_, _, err := tr.Progress.Add(context.Background(), w)
		require.NoError(t, err)
	}

	latest, ok := tr.LatestWeight()
	require.True(t, ok)
	require.InDelta(t, 80, latest.Payload.Weight, 0.0001)
}

func TestExerciseStatsReadsWorkoutCollection(t *testing.T) {
	tr := newTestTracker(t, localstore.NewMemoryKV(), "alice")

	_, _, err := tr.Workouts.Add(context.Background(), domain.WorkoutLog{
		Date:      "2024-01-01",
		Exercises: []domain.ExerciseLog{{Name: "Squat", Sets: []domain.SetLog{{Weight: 140, Reps: 3}, {Weight: 150, Reps: 1}}}},
	})
	require.NoError(t, err)

	summary := tr.ExerciseStats("squat", aggregation.MetricWeight)
	require.Len(t, summary.Points, 1)
	require.InDelta(t, 150, summary.PersonalBest, 0.0001)
	require.Equal(t, 2, summary.TotalSets)
	require.Len(t, tr.History(), 1)
}

func TestExerciseStatsStayChronologicalAfterFetch(t *testing.T) {
	workouts := &switchableWorkouts{}
	remotes := offlineRemotes()
	remotes.Workouts = workouts

	var clockMu sync.Mutex
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	tr := New(localstore.NewMemoryKV(), remotes, auth.StaticToken("token"), "alice",
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithClock(func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			now = now.Add(time.Minute)
			return now
		}))
	t.Cleanup(tr.Wait)
	bench := func(date string, weight float64) domain.WorkoutLog {
		return domain.WorkoutLog{Date: date, Exercises: []domain.ExerciseLog{{Name: "Bench", Sets: []domain.SetLog{{Weight: weight, Reps: 1}}}}}
	}
	ctx := context.Background()

	older, task, err := tr.Workouts.Add(ctx, bench("2024-01-01", 100))
	require.NoError(t, err)
	require.Equal(t, domain.AppliedLocalOnly, task.Wait().Result)

	workouts.setOnline(true)
	_, task, err = tr.Workouts.Add(ctx, bench("2024-01-08", 110))
	require.NoError(t, err)
	newer := task.Wait()
	require.Equal(t, domain.Applied, newer.Result)

	// The merge lists confirmed records before provisional ones.
	_, fetch := tr.Workouts.Fetch(ctx)
	require.Equal(t, domain.Applied, fetch.Wait().Result)
	require.Equal(t, newer.Record.ID, tr.Workouts.List()[0].ID)

	summary := tr.ExerciseStats("Bench", aggregation.MetricWeight)
	require.Len(t, summary.Points, 2)
	require.Equal(t, older.ID, summary.Points[0].WorkoutID)
	require.Equal(t, newer.Record.ID, summary.Points[1].WorkoutID)
	require.InDelta(t, 110, summary.Current, 0.0001)
	require.InDelta(t, 110, summary.PersonalBest, 0.0001)
}

// switchableWorkouts is a workout Remote that fails until set online.
type switchableWorkouts struct {
	mu      sync.Mutex
	online  bool
	records []domain.Record[domain.WorkoutLog]
}

var errUnreachable = errors.New("unreachable")

func (s *switchableWorkouts) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

func (s *switchableWorkouts) List(context.Context, string, string) ([]domain.Record[domain.WorkoutLog], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return nil, errUnreachable
	}
	return append([]domain.Record[domain.WorkoutLog](nil), s.records...), nil
}

func (s *switchableWorkouts) Create(_ context.Context, rec domain.Record[domain.WorkoutLog], _ string) (domain.Record[domain.WorkoutLog], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return domain.Record[domain.WorkoutLog]{}, errUnreachable
	}
	rec.ID = fmt.Sprintf("srv-%d", len(s.records)+1)
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *switchableWorkouts) Delete(context.Context, string, string) error {
	return errUnreachable
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
