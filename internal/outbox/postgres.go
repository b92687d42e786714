package outbox

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var Schema string

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns the relay's Store over the outbox table.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert writes records inside tx. The caller owns commit and rollback.
func Insert(ctx context.Context, tx pgx.Tx, records ...Record) error {
	for _, rec := range records {
		headers, err := json.Marshal(rec.Headers)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO outbox(event_id, topic, key, payload, headers, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.EventID, rec.Topic, rec.Key, []byte(rec.Payload), headers, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox %s: %w", rec.Topic, err)
		}
	}
	return nil
}

func (s *PostgresStore) MarkSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET sent_at=now() WHERE id=$1`, id)
	return err
}

func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, event_id, topic, key, payload, headers, created_at, sent_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			payload []byte
			headers []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &headers, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		if len(headers) > 0 {
			if err := json.Unmarshal(headers, &rec.Headers); err != nil {
				return nil, fmt.Errorf("outbox %d headers: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
