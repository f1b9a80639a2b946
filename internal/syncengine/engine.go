// Package syncengine implements the offline-first synchronisation core shared by
// every tracked collection.
//
// Each mutating call commits to memory and the local store before it returns;
// that commit is what the user sees. The remote half runs as a detached Task and
// may only move local state forward: a confirmed record replaces its provisional
// twin, a failed attempt leaves local state exactly as committed.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
	"example.com/fittracker/internal/observability"
)

// ErrRecordNotFound is returned by Delete when the id is not in the collection.
var ErrRecordNotFound = errors.New("record not found")

// Remote is the remote source of truth for one collection. Any error is treated
// as a single opaque failure.
type Remote[P any] interface {
	List(ctx context.Context, ownerKey, credential string) ([]domain.Record[P], error)
	Create(ctx context.Context, record domain.Record[P], credential string) (domain.Record[P], error)
	Delete(ctx context.Context, id, credential string) error
}

// Credentials supplies the bearer credential passed through to Remote.
type Credentials interface {
	Credential(ctx context.Context) (string, error)
}

// Config describes one collection. It replaces any process-wide storage keys.
type Config struct {
	// Collection names the domain collection, e.g. "foods".
	Collection string
	// OwnerKey identifies the account; passed to Remote.List.
	OwnerKey string
	// ScopeByOwner appends OwnerKey to the local storage key.
	ScopeByOwner bool
	// Now defaults to time.Now in UTC.
	Now func() time.Time
	// NewID defaults to domain.NewProvisionalID.
	NewID func(time.Time) string
}

// StorageKey returns the local store key for the collection.
func (c Config) StorageKey() string {
	if c.ScopeByOwner && c.OwnerKey != "" {
		return c.Collection + ":" + c.OwnerKey
	}
	return c.Collection
}

// Option configures optional behaviour for an Engine.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger overrides the logger used to report absorbed failures.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Engine keeps one collection in memory, mirrors it to the local store and
// reconciles it with Remote in the background.
type Engine[P domain.Payload] struct {
	cfg    Config
	key    string
	store  *localstore.Store[P]
	remote Remote[P]
	creds  Credentials
	logger *log.Logger

	mu          sync.Mutex
	items       []domain.Record[P]
	tombstones  []string
	lastErr     error
	subscribers []func(domain.Outcome[P])

	// seq orders local events. revs holds the seq of the latest commit per
	// record id; touched also counts confirmations.
	seq     uint64
	revs    map[string]uint64
	touched map[string]uint64
	// confirmed maps provisional ids to the id the remote assigned.
	confirmed map[string]string
	// pending holds the last unfinished create per committed id.
	pending map[string]chan struct{}

	inflight sync.WaitGroup
}

// New constructs an Engine and loads the collection from the local store.
func New[P domain.Payload](cfg Config, store *localstore.Store[P], remote Remote[P], creds Credentials, opts ...Option) *Engine[P] {
	o := options{logger: log.New(log.Writer(), fmt.Sprintf("[sync:%s] ", cfg.Collection), log.LstdFlags)}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = domain.NewProvisionalID
	}

	e := &Engine[P]{
		cfg:    cfg,
		key:    cfg.StorageKey(),
		store:  store,
		remote: remote,
		creds:  creds,
		logger: o.logger,

		revs:      make(map[string]uint64),
		touched:   make(map[string]uint64),
		confirmed: make(map[string]string),
		pending:   make(map[string]chan struct{}),
	}
	e.items = store.Load(e.key)
	e.tombstones = store.LoadTombstones(e.key)
	observability.RecordPendingDeletes(cfg.Collection, len(e.tombstones))
	return e
}

// Subscribe registers fn to receive every finished reconciliation. fn runs on
// the reconciliation goroutine and must not block for long.
func (e *Engine[P]) Subscribe(fn func(domain.Outcome[P])) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// List returns a copy of the in-memory collection.
func (e *Engine[P]) List() []domain.Record[P] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items)
}

// LastError returns the most recent remote failure since the last operation
// started. It only feeds transient banners.
func (e *Engine[P]) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// PendingDeletes returns the confirmed ids deleted locally whose remote delete
// has not succeeded yet.
func (e *Engine[P]) PendingDeletes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.tombstones)
}

// Wait blocks until every in-flight reconciliation has finished.
func (e *Engine[P]) Wait() {
	e.inflight.Wait()
}

// Add commits a new provisional record and starts its remote create.
func (e *Engine[P]) Add(ctx context.Context, payload P) (domain.Record[P], *Task[P], error) {
	e.clearLastError()
	if err := payload.Validate(); err != nil {
		return domain.Record[P]{}, nil, err
	}

	e.mu.Lock()
	now := e.cfg.Now()
	rec := domain.Record[P]{ID: e.cfg.NewID(now), Payload: payload, CreatedAt: now, UpdatedAt: now}
	e.items = append(slices.Clone(e.items), rec)
	e.persistLocked()
	task := e.reconcileLocked(ctx, domain.OperationAdd, rec)
	e.mu.Unlock()
	return rec, task, nil
}

// Save upserts a record. An empty id allocates a provisional id exactly like
// Add; otherwise the record with that id is replaced in place (or appended when
// it is not held locally).
func (e *Engine[P]) Save(ctx context.Context, id string, payload P) (domain.Record[P], *Task[P], error) {
	e.clearLastError()
	if err := payload.Validate(); err != nil {
		return domain.Record[P]{}, nil, err
	}

	e.mu.Lock()
	now := e.cfg.Now()
	id = e.resolveLocked(id)
	next := slices.Clone(e.items)
	var rec domain.Record[P]
	if id == "" {
		rec = domain.Record[P]{ID: e.cfg.NewID(now), Payload: payload, CreatedAt: now, UpdatedAt: now}
		next = append(next, rec)
	} else if idx := indexOf(next, id); idx >= 0 {
		rec = domain.Record[P]{ID: id, Payload: payload, CreatedAt: next[idx].CreatedAt, UpdatedAt: now}
		next[idx] = rec
	} else {
		rec = domain.Record[P]{ID: id, Payload: payload, CreatedAt: now, UpdatedAt: now}
		next = append(next, rec)
	}
	e.items = next
	e.persistLocked()
	task := e.reconcileLocked(ctx, domain.OperationSave, rec)
	e.mu.Unlock()
	return rec, task, nil
}

// reconcileLocked stamps rec as the latest local revision of its id and starts
// its remote create. Creates for the same id run one after another so a later
// save never races an earlier one.
func (e *Engine[P]) reconcileLocked(ctx context.Context, op domain.Operation, rec domain.Record[P]) *Task[P] {
	rev := e.stampLocked(rec.ID)
	e.revs[rec.ID] = rev
	prev := e.pending[rec.ID]

	var task *Task[P]
	task = e.spawn(ctx, op, rec.ID, func(ctx context.Context) domain.Outcome[P] {
		if prev != nil {
			<-prev
		}
		outcome := e.reconcileCreate(ctx, rec, rev)
		e.mu.Lock()
		if e.pending[rec.ID] == task.done {
			delete(e.pending, rec.ID)
		}
		e.mu.Unlock()
		return outcome
	})
	e.pending[rec.ID] = task.done
	return task
}

// Delete removes the record locally. The removal is final: a failed remote
// delete is remembered and retried on the next successful fetch, never undone.
func (e *Engine[P]) Delete(ctx context.Context, id string) (*Task[P], error) {
	e.clearLastError()

	e.mu.Lock()
	id = e.resolveLocked(id)
	idx := indexOf(e.items, id)
	if idx < 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	removed := e.items[idx]
	e.items = slices.Delete(slices.Clone(e.items), idx, idx+1)
	e.persistLocked()
	delete(e.revs, id)
	e.stampLocked(id)
	provisional := domain.IsProvisional(id)
	if !provisional {
		e.addTombstoneLocked(id)
	}
	e.mu.Unlock()

	if provisional {
		// The remote never saw this id.
		outcome := domain.Outcome[P]{Op: domain.OperationDelete, Result: domain.Applied, Record: removed, LocalID: id}
		observability.RecordOutcome(e.cfg.Collection, string(outcome.Op), outcome.Result.String(), 0)
		e.publish(outcome)
		return completedTask(outcome), nil
	}

	return e.spawn(ctx, domain.OperationDelete, id, func(ctx context.Context) domain.Outcome[P] {
		if err := e.remoteDelete(ctx, id); err != nil {
			e.logger.Printf("remote delete %s failed, keeping local removal: %v", id, err)
			e.setLastError(err)
			return domain.Outcome[P]{Result: domain.AppliedLocalOnly, Record: removed, Err: err}
		}
		return domain.Outcome[P]{Result: domain.Applied, Record: removed}
	}), nil
}

// Fetch loads the collection from the local store and returns it immediately,
// then refreshes it from Remote in the background. A failed refresh leaves the
// cached collection in place.
func (e *Engine[P]) Fetch(ctx context.Context) ([]domain.Record[P], *Task[P]) {
	e.clearLastError()

	e.mu.Lock()
	e.items = e.store.Load(e.key)
	e.tombstones = e.store.LoadTombstones(e.key)
	cached := slices.Clone(e.items)
	since := e.seq
	e.mu.Unlock()

	task := e.spawn(ctx, domain.OperationFetch, "", func(ctx context.Context) domain.Outcome[P] {
		cred, err := e.creds.Credential(ctx)
		var remote []domain.Record[P]
		if err == nil {
			remote, err = e.remote.List(ctx, e.cfg.OwnerKey, cred)
		}
		if err != nil {
			e.logger.Printf("remote list failed, keeping cached collection: %v", err)
			e.setLastError(err)
			return domain.Outcome[P]{Result: domain.AppliedLocalOnly, Records: e.List(), Err: err}
		}

		e.mu.Lock()
		e.items = mergeRemote(remote, e.items, e.tombstones, func(id string) bool {
			return e.touched[id] > since
		})
		e.persistLocked()
		pending := slices.Clone(e.tombstones)
		e.mu.Unlock()

		for _, id := range pending {
			if err := e.remoteDelete(ctx, id); err != nil {
				e.logger.Printf("retry remote delete %s failed: %v", id, err)
			}
		}
		return domain.Outcome[P]{Result: domain.Applied, Records: e.List()}
	})
	return cached, task
}

func (e *Engine[P]) reconcileCreate(ctx context.Context, rec domain.Record[P], rev uint64) domain.Outcome[P] {
	// An earlier create of the same provisional id may have been confirmed
	// while this one waited; upsert that record instead of minting another.
	e.mu.Lock()
	target := e.resolveLocked(rec.ID)
	e.mu.Unlock()
	send := rec
	send.ID = target

	cred, err := e.creds.Credential(ctx)
	var confirmed domain.Record[P]
	if err == nil {
		confirmed, err = e.remote.Create(ctx, send, cred)
	}
	if err == nil && (confirmed.ID == "" || domain.IsProvisional(confirmed.ID)) {
		err = fmt.Errorf("remote returned unconfirmed id %q", confirmed.ID)
	}
	if err != nil {
		e.logger.Printf("remote create %s failed, keeping local record: %v", rec.ID, err)
		e.setLastError(err)
		return domain.Outcome[P]{Result: domain.AppliedLocalOnly, Record: rec, Err: err}
	}

	e.mu.Lock()
	if domain.IsProvisional(rec.ID) {
		e.confirmed[rec.ID] = confirmed.ID
	}
	idx := indexOf(e.items, target)
	if idx < 0 {
		// Deleted locally while the create was in flight; local intent wins.
		e.addTombstoneLocked(confirmed.ID)
		e.mu.Unlock()
		if err := e.remoteDelete(ctx, confirmed.ID); err != nil {
			e.logger.Printf("remote delete %s after local delete failed: %v", confirmed.ID, err)
		}
		return domain.Outcome[P]{Result: domain.Applied, Record: rec, Discarded: true}
	}

	current := e.items[idx]
	merged := confirmed
	if e.revs[current.ID] != rev {
		// Saved again locally after this create was sent: the newer payload
		// stays and only takes over the confirmed identity.
		merged = current
		merged.ID = confirmed.ID
	}
	next := slices.Clone(e.items)
	next[idx] = merged
	next = dedupe(next, merged.ID, idx)
	e.items = next
	if current.ID != merged.ID {
		e.revs[merged.ID] = e.revs[current.ID]
		delete(e.revs, current.ID)
	}
	e.stampLocked(merged.ID)
	e.persistLocked()
	e.mu.Unlock()

	return domain.Outcome[P]{Result: domain.Applied, Record: merged}
}

// resolveLocked maps a provisional id to its confirmed id once known.
func (e *Engine[P]) resolveLocked(id string) string {
	if confirmed, ok := e.confirmed[id]; ok {
		return confirmed
	}
	return id
}

// stampLocked records a local change to id and returns its sequence number.
func (e *Engine[P]) stampLocked(id string) uint64 {
	e.seq++
	e.touched[id] = e.seq
	return e.seq
}

// remoteDelete deletes id remotely and clears its tombstone on success.
func (e *Engine[P]) remoteDelete(ctx context.Context, id string) error {
	cred, err := e.creds.Credential(ctx)
	if err == nil {
		err = e.remote.Delete(ctx, id, cred)
	}
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := slices.Index(e.tombstones, id); i >= 0 {
		e.tombstones = slices.Delete(slices.Clone(e.tombstones), i, i+1)
		e.persistTombstonesLocked()
	}
	return nil
}

func (e *Engine[P]) spawn(ctx context.Context, op domain.Operation, localID string, run func(context.Context) domain.Outcome[P]) *Task[P] {
	task := newTask[P]()
	// Reconciliation is never cancelled by the caller going away.
	ctx = context.WithoutCancel(ctx)

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		start := time.Now()
		outcome := run(ctx)
		outcome.Op = op
		outcome.LocalID = localID
		observability.RecordOutcome(e.cfg.Collection, string(op), outcome.Result.String(), time.Since(start))
		e.publish(outcome)
		task.complete(outcome)
	}()
	return task
}

func (e *Engine[P]) publish(outcome domain.Outcome[P]) {
	e.mu.Lock()
	subs := slices.Clone(e.subscribers)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(outcome)
	}
}

func (e *Engine[P]) persistLocked() {
	// Failures are logged by the store; memory stays authoritative.
	_ = e.store.Save(e.key, e.items)
}

func (e *Engine[P]) addTombstoneLocked(id string) {
	if slices.Contains(e.tombstones, id) {
		return
	}
	e.tombstones = append(slices.Clone(e.tombstones), id)
	e.persistTombstonesLocked()
}

func (e *Engine[P]) persistTombstonesLocked() {
	_ = e.store.SaveTombstones(e.key, e.tombstones)
	observability.RecordPendingDeletes(e.cfg.Collection, len(e.tombstones))
}

func (e *Engine[P]) clearLastError() {
	e.mu.Lock()
	e.lastErr = nil
	e.mu.Unlock()
}

func (e *Engine[P]) setLastError(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func indexOf[P any](items []domain.Record[P], id string) int {
	return slices.IndexFunc(items, func(r domain.Record[P]) bool { return r.ID == id })
}

// dedupe drops every record with id except the one at keep.
func dedupe[P any](items []domain.Record[P], id string, keep int) []domain.Record[P] {
	out := items[:0:0]
	for i, rec := range items {
		if rec.ID == id && i != keep {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// mergeRemote builds the collection after a successful list: the confirmed
// records the remote returned, minus local tombstones, followed by the local
// provisional records still awaiting confirmation. Local records for which
// keepLocal reports true changed after the list was requested and win over
// the remote copy.
func mergeRemote[P any](remote, local []domain.Record[P], tombstones []string, keepLocal func(id string) bool) []domain.Record[P] {
	newer := make(map[string]domain.Record[P])
	for _, rec := range local {
		if !domain.IsProvisional(rec.ID) && keepLocal(rec.ID) {
			newer[rec.ID] = rec
		}
	}

	seen := make(map[string]struct{}, len(remote)+len(local))
	out := make([]domain.Record[P], 0, len(remote)+len(local))
	for _, rec := range remote {
		if rec.ID == "" || domain.IsProvisional(rec.ID) || slices.Contains(tombstones, rec.ID) {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		if mine, ok := newer[rec.ID]; ok {
			rec = mine
		}
		out = append(out, rec)
	}
	for _, rec := range local {
		if !domain.IsProvisional(rec.ID) {
			if _, ok := newer[rec.ID]; !ok {
				continue
			}
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
