// Package credits tracks per-invoice customer credit balances and applies
// incoming payments oldest-first across a customer's outstanding credits.
package credits

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// CreditStatus moves due → partial → paid; paid is terminal and a credit
// never moves back towards due.
type CreditStatus string

const (
	StatusDue     CreditStatus = "due"
	StatusPartial CreditStatus = "partial"
	StatusPaid    CreditStatus = "paid"
)

// CreditPaymentType selects how a credit-financed invoice opens its credit.
type CreditPaymentType string

const (
	CreditPaymentFull    CreditPaymentType = "full"
	CreditPaymentPartial CreditPaymentType = "partial"
)

// CustomerCredit is one invoice's outstanding balance for a customer.
type CustomerCredit struct {
	ID          int64           `json:"id"`
	CompanyID   int64           `json:"company_id"`
	CustomerID  int64           `json:"customer_id"`
	InvoiceID   int64           `json:"invoice_id"`
	TotalDue    decimal.Decimal `json:"total_due"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      CreditStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CreditWithInvoice joins the invoice snapshot for statement views.
type CreditWithInvoice struct {
	CustomerCredit
	InvoiceNumber      string          `json:"invoice_number"`
	InvoiceDate        time.Time       `json:"invoice_date"`
	InvoiceFinalAmount decimal.Decimal `json:"invoice_final_amount"`
	CustomerName       string          `json:"customer_name"`
	CustomerNumber     string          `json:"customer_number"`
}

// DeriveStatus computes the status from paid and outstanding amounts.
func DeriveStatus(amountPaid, outstanding decimal.Decimal) CreditStatus {
	switch {
	case outstanding.LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case amountPaid.GreaterThan(decimal.Zero):
		return StatusPartial
	default:
		return StatusDue
	}
}

// Open builds the initial credit for a credit-financed invoice. A partial
// opening records the amount already collected; a full credit defers the
// whole final amount.
func Open(companyID, customerID, invoiceID int64, totalDue decimal.Decimal, paymentType CreditPaymentType, partialAmount decimal.Decimal) (CustomerCredit, error) {
	amountPaid := decimal.Zero
	switch paymentType {
	case CreditPaymentPartial:
		amountPaid = partialAmount
	case CreditPaymentFull:
	default:
		return CustomerCredit{}, shared.NewValidationError(
			shared.Violationf("creditPaymentType", "must be %q or %q", CreditPaymentFull, CreditPaymentPartial))
	}
	if amountPaid.IsNegative() {
		return CustomerCredit{}, shared.NewValidationError(
			shared.Violationf("partialAmount", "must not be negative"))
	}

	outstanding := totalDue.Sub(amountPaid)
	credit := CustomerCredit{
		CompanyID:   companyID,
		CustomerID:  customerID,
		InvoiceID:   invoiceID,
		TotalDue:    totalDue,
		AmountPaid:  amountPaid,
		Outstanding: outstanding,
		Status:      DeriveStatus(amountPaid, outstanding),
	}
	if err := credit.CheckInvariant(); err != nil {
		return CustomerCredit{}, err
	}
	return credit, nil
}

// CheckInvariant verifies amount_paid + outstanding == total_due and that
// status matches the derivation rule. A failure is a bug, not user error.
func (c CustomerCredit) CheckInvariant() error {
	if !c.AmountPaid.Add(c.Outstanding).Equal(c.TotalDue) {
		return fmt.Errorf("%w: credit %d: paid %s + outstanding %s != due %s",
			shared.ErrConsistency, c.ID, c.AmountPaid, c.Outstanding, c.TotalDue)
	}
	if got := DeriveStatus(c.AmountPaid, c.Outstanding); got != c.Status {
		return fmt.Errorf("%w: credit %d: status %s, derived %s", shared.ErrConsistency, c.ID, c.Status, got)
	}
	return nil
}

// Allocate applies payable towards the credit and re-derives its state.
func (c *CustomerCredit) Allocate(payable decimal.Decimal) error {
	if payable.IsNegative() {
		return fmt.Errorf("%w: negative allocation %s", shared.ErrConsistency, payable)
	}
	c.AmountPaid = c.AmountPaid.Add(payable)
	c.Outstanding = c.TotalDue.Sub(c.AmountPaid)
	if c.Outstanding.IsNegative() {
		return fmt.Errorf("%w: credit %d over-allocated, outstanding %s", shared.ErrConsistency, c.ID, c.Outstanding)
	}
	c.Status = DeriveStatus(c.AmountPaid, c.Outstanding)
	return nil
}
