package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository returns a Repository backed by the products table.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the products table if it is missing.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("products schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, description, price, stock, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    stock = EXCLUDED.stock,
		    updated_at = EXCLUDED.updated_at
	`, p.ID, p.Name, p.Description, p.Price.String(), p.Stock, p.UpdatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (*Product, error) {
	var (
		p     Product
		price string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, description, price::text, stock, updated_at
		FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Description, &price, &p.Stock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s price: %w", productID, err)
	}
	return &p, nil
}
