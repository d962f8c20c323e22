package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Queryer is satisfied by both *pgxpool.Pool and pgx.Tx, so the upsert can
// join the invoice writer's transaction.
type Queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Upsert creates or refreshes the customer identified by
// (company_id, number) and returns the row. Explicit upsert at the
// persistence boundary, part of the invoice writer's contract.
func Upsert(ctx context.Context, q Queryer, input UpsertInput) (*Customer, error) {
	var c Customer
	err := q.QueryRow(ctx, `INSERT INTO customers (company_id, number, name, email, address, pincode, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
ON CONFLICT (company_id, number) DO UPDATE SET
	name = EXCLUDED.name,
	email = COALESCE(EXCLUDED.email, customers.email),
	address = COALESCE(EXCLUDED.address, customers.address),
	pincode = COALESCE(EXCLUDED.pincode, customers.pincode),
	updated_at = NOW()
RETURNING id, company_id, number, name, email, address, pincode, created_at, updated_at`,
		input.CompanyID, input.Number, input.Name, input.Email, input.Address, input.Pincode).
		Scan(&c.ID, &c.CompanyID, &c.Number, &c.Name, &c.Email, &c.Address, &c.Pincode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert customer %s: %w", input.Number, err)
	}
	return &c, nil
}

// Repository provides read access outside the invoice transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a customer by id within a company.
func (r *Repository) Get(ctx context.Context, companyID, customerID int64) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, number, name, email, address, pincode, created_at, updated_at
FROM customers WHERE company_id = $1 AND id = $2`, companyID, customerID).
		Scan(&c.ID, &c.CompanyID, &c.Number, &c.Name, &c.Email, &c.Address, &c.Pincode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// GetByNumber fetches a customer by its unique number within a company.
func (r *Repository) GetByNumber(ctx context.Context, companyID int64, number string) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, number, name, email, address, pincode, created_at, updated_at
FROM customers WHERE company_id = $1 AND number = $2`, companyID, number).
		Scan(&c.ID, &c.CompanyID, &c.Number, &c.Name, &c.Email, &c.Address, &c.Pincode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", number, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}
