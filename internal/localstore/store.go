// Package localstore persists one collection of records per key on top of a
// best-effort key-value capability.
//
// Nothing in this package returns a read error to the caller: an absent or
// corrupt value loads as an empty collection. Write failures are logged and
// reported back only so the caller can count them; they never undo state the
// caller has already shown.
package localstore

import (
	"encoding/json"
	"log"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/observability"
)

// KV is the durable key-value storage the store writes through. Set must
// replace the previous value atomically: a later Get never sees a partial write.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

type options struct {
	logger *log.Logger
}

// Option configures optional behaviour for a Store.
type Option func(*options)

// WithLogger overrides the logger used to report swallowed failures.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Store reads and writes whole collections of Record[P].
type Store[P any] struct {
	kv     KV
	logger *log.Logger
}

// New constructs a Store over kv.
func New[P any](kv KV, opts ...Option) *Store[P] {
	o := options{logger: log.New(log.Writer(), "[localstore] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[P]{kv: kv, logger: o.logger}
}

// Load returns the collection stored under key, or an empty collection when the
// key is absent, unreadable, or does not decode.
func (s *Store[P]) Load(key string) []domain.Record[P] {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Printf("load %s: %v", key, err)
		observability.RecordLocalFailure("load")
		return []domain.Record[P]{}
	}
	if !ok || raw == "" {
		return []domain.Record[P]{}
	}
	var records []domain.Record[P]
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Printf("decode %s: %v (treating as empty)", key, err)
		observability.RecordLocalFailure("decode")
		return []domain.Record[P]{}
	}
	if records == nil {
		records = []domain.Record[P]{}
	}
	return records
}

// Save overwrites the collection stored under key.
func (s *Store[P]) Save(key string, records []domain.Record[P]) error {
	if records == nil {
		records = []domain.Record[P]{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		s.logger.Printf("encode %s: %v", key, err)
		observability.RecordLocalFailure("encode")
		return err
	}
	if err := s.kv.Set(key, string(body)); err != nil {
		s.logger.Printf("save %s: %v", key, err)
		observability.RecordLocalFailure("save")
		return err
	}
	return nil
}

// TombstoneKey is where the ids deleted locally but not yet deleted remotely
// are kept for the collection stored under key.
func TombstoneKey(key string) string {
	return key + ".tombstones"
}

// LoadTombstones returns the pending remote deletes for the collection under key.
func (s *Store[P]) LoadTombstones(key string) []string {
	raw, ok, err := s.kv.Get(TombstoneKey(key))
	if err != nil {
		s.logger.Printf("load %s: %v", TombstoneKey(key), err)
		observability.RecordLocalFailure("load")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Printf("decode %s: %v (treating as empty)", TombstoneKey(key), err)
		observability.RecordLocalFailure("decode")
		return nil
	}
	return ids
}

// SaveTombstones overwrites the pending remote deletes for the collection under key.
func (s *Store[P]) SaveTombstones(key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	body, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.kv.Set(TombstoneKey(key), string(body)); err != nil {
		s.logger.Printf("save %s: %v", TombstoneKey(key), err)
		observability.RecordLocalFailure("save")
		return err
	}
	return nil
}
