package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type Execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InsertTx writes the opening credit inside the caller's transaction; the
// invoice writer delegates here so invoice and credit commit together.
func InsertTx(ctx context.Context, q Execer, credit CustomerCredit) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO customer_credits (company_id, customer_id, invoice_id, total_due, amount_paid, outstanding, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		credit.CompanyID, credit.CustomerID, credit.InvoiceID,
		credit.TotalDue.String(), credit.AmountPaid.String(), credit.Outstanding.String(), credit.Status).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert customer credit: %w", err)
	}
	return id, nil
}

// TxRepository exposes the allocation operations bound to one transaction.
type TxRepository interface {
	// ListOutstandingForUpdate locks and returns the customer's non-paid
	// credits ordered by ascending id (creation order).
	ListOutstandingForUpdate(ctx context.Context, companyID, customerID int64) ([]CustomerCredit, error)
	UpdateAllocation(ctx context.Context, credit CustomerCredit) error
}

// Repository provides PostgreSQL backed persistence for the credit ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps a callback in a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const creditColumns = `id, company_id, customer_id, invoice_id, total_due::text, amount_paid::text, outstanding::text, status, created_at, updated_at`

// GetCredit fetches one credit row within a company.
func (r *Repository) GetCredit(ctx context.Context, companyID, creditID int64) (*CustomerCredit, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+creditColumns+` FROM customer_credits WHERE company_id = $1 AND id = $2`, companyID, creditID)
	credit, err := scanCredit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("credit %d: %w", creditID, shared.ErrNotFound)
		}
		return nil, err
	}
	return credit, nil
}

// ListOutstanding returns the customer's non-paid credits joined with the
// invoice snapshot, ordered by creation.
func (r *Repository) ListOutstanding(ctx context.Context, companyID, customerID int64) ([]CreditWithInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT cc.id, cc.company_id, cc.customer_id, cc.invoice_id,
	cc.total_due::text, cc.amount_paid::text, cc.outstanding::text, cc.status, cc.created_at, cc.updated_at,
	i.invoice_number, i.invoice_date, i.final_amount::text,
	c.name, c.number
FROM customer_credits cc
JOIN invoices i ON i.id = cc.invoice_id
JOIN customers c ON c.id = cc.customer_id
WHERE cc.company_id = $1 AND cc.customer_id = $2 AND cc.status <> 'paid'
ORDER BY cc.id`, companyID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []CreditWithInvoice
	for rows.Next() {
		var (
			cw                                CreditWithInvoice
			totalDue, amountPaid, outstanding string
			finalAmount                       string
		)
		if err := rows.Scan(&cw.ID, &cw.CompanyID, &cw.CustomerID, &cw.InvoiceID,
			&totalDue, &amountPaid, &outstanding, &cw.Status, &cw.CreatedAt, &cw.UpdatedAt,
			&cw.InvoiceNumber, &cw.InvoiceDate, &finalAmount,
			&cw.CustomerName, &cw.CustomerNumber); err != nil {
			return nil, err
		}
		if err := assignAmounts(&cw.CustomerCredit, totalDue, amountPaid, outstanding); err != nil {
			return nil, err
		}
		if cw.InvoiceFinalAmount, err = decimal.NewFromString(finalAmount); err != nil {
			return nil, err
		}
		credits = append(credits, cw)
	}
	return credits, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) ListOutstandingForUpdate(ctx context.Context, companyID, customerID int64) ([]CustomerCredit, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+creditColumns+`
FROM customer_credits
WHERE company_id = $1 AND customer_id = $2 AND status <> 'paid'
ORDER BY id
FOR UPDATE`, companyID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []CustomerCredit
	for rows.Next() {
		var (
			c                                 CustomerCredit
			totalDue, amountPaid, outstanding string
		)
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.CustomerID, &c.InvoiceID,
			&totalDue, &amountPaid, &outstanding, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if err := assignAmounts(&c, totalDue, amountPaid, outstanding); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

func (t *txRepo) UpdateAllocation(ctx context.Context, credit CustomerCredit) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customer_credits
SET amount_paid = $1, outstanding = $2, status = $3, updated_at = NOW()
WHERE company_id = $4 AND id = $5`,
		credit.AmountPaid.String(), credit.Outstanding.String(), credit.Status, credit.CompanyID, credit.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: credit %d vanished during allocation", shared.ErrConsistency, credit.ID)
	}
	return nil
}

func scanCredit(row pgx.Row) (*CustomerCredit, error) {
	var (
		c                                 CustomerCredit
		totalDue, amountPaid, outstanding string
	)
	if err := row.Scan(&c.ID, &c.CompanyID, &c.CustomerID, &c.InvoiceID,
		&totalDue, &amountPaid, &outstanding, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := assignAmounts(&c, totalDue, amountPaid, outstanding); err != nil {
		return nil, err
	}
	return &c, nil
}

func assignAmounts(c *CustomerCredit, totalDue, amountPaid, outstanding string) error {
	var err error
	if c.TotalDue, err = decimal.NewFromString(totalDue); err != nil {
		return err
	}
	if c.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
		return err
	}
	c.Outstanding, err = decimal.NewFromString(outstanding)
	return err
}
