package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides company and package lookups.
type Repository interface {
	GetCompany(ctx context.Context, companyID int64) (*Company, error)
	GetPackage(ctx context.Context, packageID int64) (*Package, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetCompany(ctx context.Context, companyID int64) (*Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, package_id, subscription
FROM companies WHERE id = $1`, companyID).
		Scan(&c.ID, &c.Code, &c.Name, &c.PackageID, &c.Subscription)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", companyID, shared.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetPackage(ctx context.Context, packageID int64) (*Package, error) {
	var p Package
	err := r.pool.QueryRow(ctx, `SELECT id, name, monthly_invoice_limit, annual_invoice_limit, three_year_invoice_limit
FROM packages WHERE id = $1`, packageID).
		Scan(&p.ID, &p.Name, &p.MonthlyInvoiceLimit, &p.AnnualInvoiceLimit, &p.ThreeYearInvoiceLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("package %d: %w", packageID, shared.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}
