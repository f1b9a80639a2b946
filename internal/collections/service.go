// Package collections is the remote source of truth behind the records API.
package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"

	"example.com/fittracker/internal/domain"
)

var (
	// ErrUnknownCollection is returned for a collection the service does not host.
	ErrUnknownCollection = errors.New("unknown collection")
	// ErrInvalidRecord is returned when a record payload does not validate.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is a stored record with its payload kept as raw JSON.
type Record = domain.Record[json.RawMessage]

// Repository captures persistence operations. Every call is scoped to one
// owner's collection.
type Repository interface {
	List(ctx context.Context, ownerKey, collection string) ([]Record, error)
	// Upsert stores rec and returns it as stored. CreatedAt of an existing
	// record is preserved.
	Upsert(ctx context.Context, ownerKey, collection string, rec Record) (Record, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, ownerKey, collection, id string) (bool, error)
}

// Validator checks a raw payload for one collection.
type Validator func(json.RawMessage) error

// PayloadValidator decodes raw into P and runs its Validate.
func PayloadValidator[P domain.Payload]() Validator {
	return func(raw json.RawMessage) error {
		var p P
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		return p.Validate()
	}
}

// DefaultValidators covers the collections the fitness app syncs.
func DefaultValidators() map[string]Validator {
	return map[string]Validator{
		"foods":    PayloadValidator[domain.FoodEntry](),
		"progress": PayloadValidator[domain.WeightEntry](),
		"goals":    PayloadValidator[domain.Goals](),
		"workouts": PayloadValidator[domain.WorkoutLog](),
	}
}

// Option configures optional behaviour for a Service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates record workflows.
type Service struct {
	repo       Repository
	validators map[string]Validator
	logger     *log.Logger
	now        func() time.Time
}

// NewService constructs a Service hosting the collections in validators.
func NewService(repo Repository, validators map[string]Validator, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		validators: validators,
		logger:     log.New(log.Writer(), "[collections] ", log.LstdFlags),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collections lists the hosted collection names.
func (s *Service) Collections() []string {
	names := make([]string, 0, len(s.validators))
	for name := range s.validators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Service) validate(collection string) (Validator, error) {
	v, ok := s.validators[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	return v, nil
}

// List returns the owner's records.
func (s *Service) List(ctx context.Context, ownerKey, collection string) ([]Record, error) {
	if _, err := s.validate(collection); err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, ownerKey, collection)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Create stores rec. A record without a confirmed id is assigned a new one;
// a confirmed id replaces the stored record with that id. Provisional ids
// are never stored.
func (s *Service) Create(ctx context.Context, ownerKey, collection string, rec Record) (Record, error) {
	validate, err := s.validate(collection)
	if err != nil {
		return Record{}, err
	}
	if len(rec.Payload) == 0 {
		return Record{}, fmt.Errorf("%w: payload is required", ErrInvalidRecord)
	}
	if err := validate(rec.Payload); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	now := s.now()
	if rec.ID == "" || domain.IsProvisional(rec.ID) {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	stored, err := s.repo.Upsert(ctx, ownerKey, collection, rec)
	if err != nil {
		s.logger.Printf("upsert %s/%s: %v", collection, rec.ID, err)
		return Record{}, err
	}
	return stored, nil
}

// Delete removes id. Deleting a record that does not exist succeeds so a
// retried client delete always converges.
func (s *Service) Delete(ctx context.Context, ownerKey, collection, id string) error {
	if _, err := s.validate(collection); err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, ownerKey, collection, id)
	if err != nil {
		s.logger.Printf("delete %s/%s: %v", collection, id, err)
		return err
	}
	if !removed {
		s.logger.Printf("delete %s/%s: already absent", collection, id)
	}
	return nil
}
