// Package tracker wires the four synced collections of the app onto the sync
// engine and exposes the read models built on top of them.
package tracker

import (
	"context"
	"log"
	"time"

	"example.com/fittracker/internal/aggregation"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
	"example.com/fittracker/internal/syncengine"
)

// Collection names. They double as local storage keys and remote paths.
const (
	CollectionFoods    = "foods"
	CollectionProgress = "progress"
	CollectionGoals    = "goals"
	CollectionWorkouts = "workouts"
)

// Remotes holds one Remote per collection.
type Remotes struct {
	Foods    syncengine.Remote[domain.FoodEntry]
	Progress syncengine.Remote[domain.WeightEntry]
	Goals    syncengine.Remote[domain.Goals]
	Workouts syncengine.Remote[domain.WorkoutLog]
}

// Option configures optional behaviour for a Tracker.
type Option func(*options)

type options struct {
	logger *log.Logger
	now    func() time.Time
}

// WithLogger sets the logger every engine and store reports to.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the clock used for record timestamps and provisional ids.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Tracker is one signed-in account's view of its data.
type Tracker struct {
	Foods    *syncengine.Engine[domain.FoodEntry]
	Progress *syncengine.Engine[domain.WeightEntry]
	Goals    *syncengine.Engine[domain.Goals]
	Workouts *syncengine.Engine[domain.WorkoutLog]
}

// New builds the engines for ownerKey over kv. Every collection is scoped by
// owner so two accounts on one device never share records.
func New(kv localstore.KV, remotes Remotes, creds syncengine.Credentials, ownerKey string, opts ...Option) *Tracker {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := func(collection string) syncengine.Config {
		return syncengine.Config{Collection: collection, OwnerKey: ownerKey, ScopeByOwner: true, Now: o.now}
	}
	var storeOpts []localstore.Option
	var engineOpts []syncengine.Option
	if o.logger != nil {
		storeOpts = append(storeOpts, localstore.WithLogger(o.logger))
		engineOpts = append(engineOpts, syncengine.WithLogger(o.logger))
	}

	return &Tracker{
		Foods: syncengine.New(cfg(CollectionFoods),
			localstore.New[domain.FoodEntry](kv, storeOpts...), remotes.Foods, creds, engineOpts...),
		Progress: syncengine.New(cfg(CollectionProgress),
			localstore.New[domain.WeightEntry](kv, storeOpts...), remotes.Progress, creds, engineOpts...),
		Goals: syncengine.New(cfg(CollectionGoals),
			localstore.New[domain.Goals](kv, storeOpts...), remotes.Goals, creds, engineOpts...),
		Workouts: syncengine.New(cfg(CollectionWorkouts),
			localstore.New[domain.WorkoutLog](kv, storeOpts...), remotes.Workouts, creds, engineOpts...),
	}
}

// Wait blocks until every collection's reconciliations have finished.
func (t *Tracker) Wait() {
	t.Foods.Wait()
	t.Progress.Wait()
	t.Goals.Wait()
	t.Workouts.Wait()
}

// CurrentGoals returns the most recently written goal record.
func (t *Tracker) CurrentGoals() (domain.Record[domain.Goals], bool) {
	records := t.Goals.List()
	if len(records) == 0 {
		return domain.Record[domain.Goals]{}, false
	}
	return records[len(records)-1], true
}

// SaveGoals replaces the current goals, or creates them when none exist.
func (t *Tracker) SaveGoals(ctx context.Context, goals domain.Goals) (domain.Record[domain.Goals], *syncengine.Task[domain.Goals], error) {
	var id string
	if current, ok := t.CurrentGoals(); ok {
		id = current.ID
	}
	return t.Goals.Save(ctx, id, goals)
}

// History returns the workout history in the shape aggregation reads.
func (t *Tracker) History() []domain.WorkoutHistoryEntry {
	return domain.HistoryFromRecords(t.Workouts.List())
}

// ExerciseStats summarises one exercise over the current workout history.
func (t *Tracker) ExerciseStats(exercise string, metric aggregation.Metric) aggregation.Summary {
	return aggregation.Summarize(t.History(), exercise, metric)
}
