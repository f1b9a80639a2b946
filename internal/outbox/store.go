package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store over the outbox table.
type PGStore struct {
	pool        *pgxpool.Pool
	lease       time.Duration
	maxAttempts int
}

// NewPGStore constructs a PGStore. A claimed row is offered again once lease
// has passed without it being marked; rows that failed maxAttempts times are
// left for inspection.
func NewPGStore(pool *pgxpool.Pool, lease time.Duration, maxAttempts int) *PGStore {
	return &PGStore{pool: pool, lease: lease, maxAttempts: maxAttempts}
}

// Claim implements Store.
func (s *PGStore) Claim(ctx context.Context, limit int) (messages []Message, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, owner_key, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, attempts
        FROM outbox
        WHERE published_at IS NULL
          AND attempts < $2
          AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $3))
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, limit, s.maxAttempts, s.lease.Seconds())
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for rows.Next() {
		var msg Message
		var payload []byte
		if err = rows.Scan(&msg.EventID, &msg.OwnerKey, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.PartitionKey, &payload, &msg.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		msg.Payload = payload
		messages = append(messages, msg)
		ids = append(ids, msg.EventID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkPublished implements Store.
func (s *PGStore) MarkPublished(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW(), last_error = NULL WHERE event_id = ANY($1)`, ids)
	return err
}

// MarkFailed implements Store. The rows become claimable again immediately.
func (s *PGStore) MarkFailed(ctx context.Context, ids []int64, reason string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2, claimed_at = NULL WHERE event_id = ANY($1)`,
		ids, reason)
	return err
}
