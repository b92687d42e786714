package order

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"ordersaga/internal/events"
	"ordersaga/internal/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns a Repository that writes orders and their
// outbox rows in one transaction.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the orders and outbox tables if they are missing.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("orders schema: %w", err)
	}
	if _, err := db.Exec(ctx, outbox.Schema); err != nil {
		return fmt.Errorf("outbox schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order, out ...events.Event) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, items, total_amount, status, reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, o.ID, o.UserID, items, o.TotalAmount.String(), string(o.Status), o.Reason, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrOrderExists
		}
		return r.writeOutbox(ctx, tx, out)
	})
}

func (r *PostgresRepository) Update(ctx context.Context, o *Order, from events.OrderStatus, out ...events.Event) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $1, reason = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`, string(o.Status), o.Reason, o.UpdatedAt, o.ID, string(from))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s is no longer %s", ErrInvalidTransition, o.ID, from)
		}
		return r.writeOutbox(ctx, tx, out)
	})
}

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (*Order, error) {
	var (
		o      Order
		items  []byte
		total  string
		status string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, items, total_amount::text, status, reason, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.UserID, &items, &total, &status, &o.Reason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("order %s items: %w", orderID, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %s total: %w", orderID, err)
	}
	o.Status = events.OrderStatus(status)
	return &o, nil
}

func (r *PostgresRepository) writeOutbox(ctx context.Context, tx pgx.Tx, out []events.Event) error {
	records, err := outbox.NewRecords(ctx, out)
	if err != nil {
		return err
	}
	return outbox.Insert(ctx, tx, records...)
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
