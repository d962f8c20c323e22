package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/billing/credits"
	"github.com/meridian-erp/meridian-erp/internal/billing/customers"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes composed inside one invoice transaction.
type TxRepository interface {
	CountInPeriod(ctx context.Context, companyID int64, start, end time.Time) (int64, error)
	UpsertCustomer(ctx context.Context, input customers.UpsertInput) (*customers.Customer, error)
	// NextSequence returns max(sequence)+1 for the company and invoice
	// date. Uniqueness is enforced by the (company_id, invoice_number)
	// constraint at insert time, not here.
	NextSequence(ctx context.Context, companyID int64, date time.Time) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error
	InsertCustomerHistory(ctx context.Context, h CustomerHistory) error
	OpenCredit(ctx context.Context, credit credits.CustomerCredit) (int64, error)
}

// Repository provides PostgreSQL backed persistence for invoices.
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

const invoiceColumns = `id, company_id, customer_id, invoice_number, sequence, invoice_date,
client_name, client_number, client_email,
sub_total::text, service_charge_amount::text, service_charge_percent::text, service_charge_gst::text, service_charge_final::text,
discount_amount::text, discount_percentage::text, delivery_charge::text, final_amount::text,
payment_method, bank_account_id, issued_by, sent_on_whatsapp, created_at, updated_at`

// GetInvoice loads one invoice with its items in submission order.
func (r *Repository) GetInvoice(ctx context.Context, companyID, invoiceID int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id = $1 AND id = $2`, companyID, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, item_id, variant_id, batch_id, item_name, sale_by,
quantity::text, unit_price::text, tax_percentage::text, tax_amount::text, total::text, position
FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item                                       InvoiceItem
			quantity, unitPrice, taxPct, taxAmt, total string
		)
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ItemID, &item.VariantID, &item.BatchID, &item.ItemName, &item.SaleBy,
			&quantity, &unitPrice, &taxPct, &taxAmt, &total, &item.Position); err != nil {
			return nil, err
		}
		if err := parseAmounts([]amountField{
			{quantity, &item.Quantity}, {unitPrice, &item.UnitPrice}, {taxPct, &item.TaxPercentage},
			{taxAmt, &item.TaxAmount}, {total, &item.Total},
		}); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns the company's newest invoices without items,
// optionally narrowed by customer and invoice-date range.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = $1`
	args := []any{req.CompanyID}
	if req.CustomerID > 0 {
		args = append(args, req.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if req.DateFrom != nil {
		args = append(args, *req.DateFrom)
		query += fmt.Sprintf(" AND invoice_date >= $%d", len(args))
	}
	if req.DateTo != nil {
		args = append(args, *req.DateTo)
		query += fmt.Sprintf(" AND invoice_date <= $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// MarkSentOnWhatsApp flips the dispatch flag after the worker delivered the
// invoice. The header is otherwise immutable.
func (r *Repository) MarkSentOnWhatsApp(ctx context.Context, companyID, invoiceID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET sent_on_whatsapp = TRUE, updated_at = NOW() WHERE company_id = $1 AND id = $2`, companyID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", invoiceID, shared.ErrNotFound)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv Invoice

		subTotal, scAmount, scPercent, scGST, scFinal     string
		discAmount, discPercent, deliveryCharge, finalAmt string
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Number, &inv.Sequence, &inv.InvoiceDate,
		&inv.ClientName, &inv.ClientNumber, &inv.ClientEmail,
		&subTotal, &scAmount, &scPercent, &scGST, &scFinal,
		&discAmount, &discPercent, &deliveryCharge, &finalAmt,
		&inv.PaymentMethod, &inv.BankAccountID, &inv.IssuedBy, &inv.SentOnWhatsApp, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := parseAmounts([]amountField{
		{subTotal, &inv.SubTotal}, {scAmount, &inv.ServiceChargeAmount}, {scPercent, &inv.ServiceChargePercent},
		{scGST, &inv.ServiceChargeGST}, {scFinal, &inv.ServiceChargeFinal},
		{discAmount, &inv.DiscountAmount}, {discPercent, &inv.DiscountPercentage},
		{deliveryCharge, &inv.DeliveryCharge}, {finalAmt, &inv.FinalAmount},
	}); err != nil {
		return nil, err
	}
	return &inv, nil
}

type amountField struct {
	raw string
	dst *decimal.Decimal
}

func parseAmounts(fields []amountField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

// CountInPeriod counts by created_at so a backdated invoice_date cannot
// slip past the current period's quota.
func (r *txRepo) CountInPeriod(ctx context.Context, companyID int64, start, end time.Time) (int64, error) {
	var count int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE company_id = $1 AND created_at >= $2 AND created_at < $3`,
		companyID, start, end).Scan(&count)
	return count, err
}

func (r *txRepo) UpsertCustomer(ctx context.Context, input customers.UpsertInput) (*customers.Customer, error) {
	return customers.Upsert(ctx, r.tx, input)
}

func (r *txRepo) NextSequence(ctx context.Context, companyID int64, date time.Time) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM invoices WHERE company_id = $1 AND invoice_date = $2`,
		companyID, date).Scan(&next)
	return next, err
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (company_id, customer_id, invoice_number, sequence, invoice_date,
client_name, client_number, client_email,
sub_total, service_charge_amount, service_charge_percent, service_charge_gst, service_charge_final,
discount_amount, discount_percentage, delivery_charge, final_amount,
payment_method, bank_account_id, issued_by, sent_on_whatsapp, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, FALSE, NOW(), NOW())
RETURNING id`,
		inv.CompanyID, inv.CustomerID, inv.Number, inv.Sequence, inv.InvoiceDate,
		inv.ClientName, inv.ClientNumber, inv.ClientEmail,
		inv.SubTotal.String(), inv.ServiceChargeAmount.String(), inv.ServiceChargePercent.String(),
		inv.ServiceChargeGST.String(), inv.ServiceChargeFinal.String(),
		inv.DiscountAmount.String(), inv.DiscountPercentage.String(),
		inv.DeliveryCharge.String(), inv.FinalAmount.String(),
		inv.PaymentMethod, inv.BankAccountID, inv.IssuedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert invoice %s: %w", inv.Number, err)
	}
	return id, nil
}

func (r *txRepo) InsertItems(ctx context.Context, invoiceID int64, items []InvoiceItem) error {
	for i, item := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO invoice_items (invoice_id, item_id, variant_id, batch_id, item_name, sale_by,
quantity, unit_price, tax_percentage, tax_amount, total, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			invoiceID, item.ItemID, item.VariantID, item.BatchID, item.ItemName, item.SaleBy,
			item.Quantity.String(), item.UnitPrice.String(), item.TaxPercentage.String(),
			item.TaxAmount.String(), item.Total.String(), int32(i))
		if err != nil {
			return fmt.Errorf("insert invoice item %d: %w", item.ItemID, err)
		}
	}
	return nil
}

func (r *txRepo) InsertCustomerHistory(ctx context.Context, h CustomerHistory) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO customer_histories (company_id, customer_id, invoice_id, amount, note, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`,
		h.CompanyID, h.CustomerID, h.InvoiceID, h.Amount.String(), h.Note)
	if err != nil {
		return fmt.Errorf("insert customer history: %w", err)
	}
	return nil
}

func (r *txRepo) OpenCredit(ctx context.Context, credit credits.CustomerCredit) (int64, error) {
	return credits.InsertTx(ctx, r.tx, credit)
}
