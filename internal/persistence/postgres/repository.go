// Package postgres stores collection records in Postgres and records their
// events in the outbox within the same transaction.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittracker/internal/collections"
	"example.com/fittracker/internal/events"
	"example.com/fittracker/internal/observability"
)

//go:embed schema.sql
var schema string

// Migrate creates the records and outbox tables when they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// DefaultTopic receives every record event.
const DefaultTopic = "fittracker.records"

// Repository provides Postgres-backed persistence for records and outbox events.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
}

// NewRepository constructs a Repository publishing to DefaultTopic.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, topic: DefaultTopic}
}

// WithTopic returns a copy of r publishing to topic.
func (r *Repository) WithTopic(topic string) *Repository {
	cp := *r
	cp.topic = topic
	return &cp
}

// scoped runs fn in a transaction bound to ownerKey for row-level security.
func (r *Repository) scoped(ctx context.Context, ownerKey string, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.owner_key', $1, true)", ownerKey); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// List implements collections.Repository.
func (r *Repository) List(ctx context.Context, ownerKey, collection string) ([]collections.Record, error) {
	const query = `SELECT record_id, payload, created_at, updated_at
        FROM records WHERE owner_key=$1 AND collection=$2
        ORDER BY created_at, record_id`

	results := make([]collections.Record, 0)
	err := r.scoped(ctx, ownerKey, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, ownerKey, collection)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec collections.Record
			var payload []byte
			if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
				return err
			}
			rec.Payload = json.RawMessage(payload)
			results = append(results, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert implements collections.Repository.
func (r *Repository) Upsert(ctx context.Context, ownerKey, collection string, rec collections.Record) (collections.Record, error) {
	const stmt = `INSERT INTO records (owner_key, collection, record_id, payload, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (owner_key, collection, record_id)
        DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
        RETURNING record_id, payload, created_at, updated_at`

	var stored collections.Record
	err := r.scoped(ctx, ownerKey, func(tx pgx.Tx) error {
		var payload []byte
		row := tx.QueryRow(ctx, stmt, ownerKey, collection, rec.ID, []byte(rec.Payload), rec.CreatedAt, rec.UpdatedAt)
		if err := row.Scan(&stored.ID, &payload, &stored.CreatedAt, &stored.UpdatedAt); err != nil {
			return err
		}
		stored.Payload = json.RawMessage(payload)

		return r.insertOutbox(ctx, tx, ownerKey, collection, stored.ID, events.TypeRecordUpserted, stored.UpdatedAt, events.RecordUpserted{
			Collection: collection,
			OwnerKey:   ownerKey,
			RecordID:   stored.ID,
			Payload:    stored.Payload,
			CreatedAt:  stored.CreatedAt,
			UpdatedAt:  stored.UpdatedAt,
		})
	})
	if err != nil {
		return collections.Record{}, err
	}
	observability.RecordRecordPersisted(stored.UpdatedAt)
	return stored, nil
}

// Delete implements collections.Repository.
func (r *Repository) Delete(ctx context.Context, ownerKey, collection, id string) (bool, error) {
	const stmt = `DELETE FROM records WHERE owner_key=$1 AND collection=$2 AND record_id=$3`

	removed := false
	err := r.scoped(ctx, ownerKey, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, ownerKey, collection, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		removed = true

		now := time.Now().UTC()
		return r.insertOutbox(ctx, tx, ownerKey, collection, id, events.TypeRecordDeleted, now, events.RecordDeleted{
			Collection: collection,
			OwnerKey:   ownerKey,
			RecordID:   id,
			DeletedAt:  now,
		})
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, ownerKey, collection, recordID, eventType string, at time.Time, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	partitionKey := fmt.Sprintf("%s:%s", ownerKey, collection)
	dedupeKey := fmt.Sprintf("%s:%s:%s:%d", collection, recordID, eventType, at.UnixNano())

	const stmt = `INSERT INTO outbox (owner_key, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		ownerKey,
		collection,
		recordID,
		eventType,
		r.topic,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}
