package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository defines tenant-scoped reference-data lookups. Every method
// takes the company id explicitly; there is no ambient tenant filter.
type Repository interface {
	GetItem(ctx context.Context, companyID, itemID int64) (*Item, error)
	GetVariant(ctx context.Context, companyID, itemID, variantID int64) (*Variant, error)
	ListTaxRates(ctx context.Context, companyID, itemID int64) ([]TaxRate, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetItem(ctx context.Context, companyID, itemID int64) (*Item, error) {
	var (
		item                    Item
		salePrice, regularPrice *string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, name, sale_price::text, regular_price::text
FROM items WHERE company_id = $1 AND id = $2`, companyID, itemID).
		Scan(&item.ID, &item.CompanyID, &item.Name, &salePrice, &regularPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
		}
		return nil, err
	}
	if item.SalePrice, err = parsePrice(salePrice); err != nil {
		return nil, err
	}
	if item.RegularPrice, err = parsePrice(regularPrice); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetVariant(ctx context.Context, companyID, itemID, variantID int64) (*Variant, error) {
	var (
		variant          Variant
		price, secondary *string
	)
	err := r.pool.QueryRow(ctx, `SELECT v.id, v.item_id, v.name, v.price::text, v.secondary_price::text
FROM item_variants v
JOIN items i ON i.id = v.item_id
WHERE i.company_id = $1 AND v.item_id = $2 AND v.id = $3`, companyID, itemID, variantID).
		Scan(&variant.ID, &variant.ItemID, &variant.Name, &price, &secondary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("variant %d of item %d: %w", variantID, itemID, shared.ErrNotFound)
		}
		return nil, err
	}
	if variant.Price, err = parsePrice(price); err != nil {
		return nil, err
	}
	if variant.SecondaryPrice, err = parsePrice(secondary); err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) ListTaxRates(ctx context.Context, companyID, itemID int64) ([]TaxRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.percent::text
FROM tax_rates t
JOIN item_taxes it ON it.tax_rate_id = t.id
JOIN items i ON i.id = it.item_id
WHERE i.company_id = $1 AND it.item_id = $2 AND t.active
ORDER BY t.id`, companyID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []TaxRate
	for rows.Next() {
		var (
			rate    TaxRate
			percent string
		)
		if err := rows.Scan(&rate.ID, &rate.Name, &percent); err != nil {
			return nil, err
		}
		if rate.Percent, err = decimal.NewFromString(percent); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func parsePrice(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
