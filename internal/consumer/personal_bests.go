package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"example.com/fittracker/internal/aggregation"
	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/events"
)

// CollectionWorkouts is the only collection PersonalBests projects.
const CollectionWorkouts = "workouts"

// PersonalBest is a new estimated one-rep max set by a workout.
type PersonalBest struct {
	OwnerKey     string
	Exercise     string
	RecordID     string
	Date         string
	EstimatedMax float64
	Previous     float64
}

// PersonalBests keeps each owner's workout history from record events and
// reports when a workout raises an exercise's best estimated one-rep max.
type PersonalBests struct {
	mu       sync.Mutex
	workouts map[string]map[string]domain.WorkoutHistoryEntry // owner -> record id
	logger   *log.Logger
	notify   func(PersonalBest)
}

// PersonalBestsOption configures a PersonalBests projection.
type PersonalBestsOption func(*PersonalBests)

// WithPersonalBestLogger overrides the projection logger.
func WithPersonalBestLogger(logger *log.Logger) PersonalBestsOption {
	return func(p *PersonalBests) {
		p.logger = logger
	}
}

// OnPersonalBest registers fn to receive every detected personal best.
func OnPersonalBest(fn func(PersonalBest)) PersonalBestsOption {
	return func(p *PersonalBests) {
		p.notify = fn
	}
}

// NewPersonalBests constructs an empty projection.
func NewPersonalBests(opts ...PersonalBestsOption) *PersonalBests {
	p := &PersonalBests{
		workouts: make(map[string]map[string]domain.WorkoutHistoryEntry),
		logger:   log.New(log.Writer(), "[personal-bests] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle implements Handler. Events for other collections are ignored.
func (p *PersonalBests) Handle(_ context.Context, msg Message) error {
	if msg.Collection != CollectionWorkouts {
		return nil
	}
	switch msg.EventType {
	case events.TypeRecordUpserted:
		var event events.RecordUpserted
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		var workout domain.WorkoutLog
		if err := json.Unmarshal(event.Payload, &workout); err != nil {
			// A record the API accepted but this projection cannot read is skipped.
			p.logger.Printf("skip workout %s: %v", event.RecordID, err)
			return nil
		}
		p.upsert(event.OwnerKey, event.RecordID, workout)
	case events.TypeRecordDeleted:
		var event events.RecordDeleted
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		p.remove(event.OwnerKey, event.RecordID)
	}
	return nil
}

func (p *PersonalBests) upsert(owner, id string, workout domain.WorkoutLog) {
	p.mu.Lock()
	history := p.workouts[owner]
	if history == nil {
		history = make(map[string]domain.WorkoutHistoryEntry)
		p.workouts[owner] = history
	}
	previous := make(map[string]float64, len(workout.Exercises))
	for _, ex := range workout.Exercises {
		previous[ex.Name], _ = p.bestLocked(owner, ex.Name)
	}
	history[id] = domain.WorkoutHistoryEntry{ID: id, Date: workout.Date, Exercises: workout.Exercises}

	var found []PersonalBest
	for name, before := range previous {
		after, ok := p.bestLocked(owner, name)
		if ok && after > before {
			found = append(found, PersonalBest{
				OwnerKey: owner, Exercise: name, RecordID: id, Date: workout.Date,
				EstimatedMax: after, Previous: before,
			})
		}
	}
	p.mu.Unlock()

	for _, pb := range found {
		personalBestCounter.Inc()
		p.logger.Printf("personal best (owner=%s, exercise=%s, workout=%s): %.1f -> %.1f",
			pb.OwnerKey, pb.Exercise, pb.RecordID, pb.Previous, pb.EstimatedMax)
		if p.notify != nil {
			p.notify(pb)
		}
	}
}

func (p *PersonalBests) remove(owner, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workouts[owner], id)
}

// Best returns owner's best estimated one-rep max for exercise.
func (p *PersonalBests) Best(owner, exercise string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bestLocked(owner, exercise)
}

func (p *PersonalBests) bestLocked(owner, exercise string) (float64, bool) {
	history := make([]domain.WorkoutHistoryEntry, 0, len(p.workouts[owner]))
	for _, entry := range p.workouts[owner] {
		history = append(history, entry)
	}
	summary := aggregation.Summarize(history, exercise, aggregation.MetricEstimatedMax)
	return summary.PersonalBest, len(summary.Points) > 0
}
