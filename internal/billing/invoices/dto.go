package invoices

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/billing/pricing"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ChargeSpec selects an absolute amount or a percentage for service charges
// and discounts.
type ChargeSpec struct {
	Type  string          `json:"type" validate:"required,oneof=amount percentage"`
	Value decimal.Decimal `json:"value"`
}

// LineRequest is one requested order line. UnitPrice, when present,
// overrides the resolved reference price.
type LineRequest struct {
	ItemID    int64            `json:"item_id" validate:"required"`
	VariantID *int64           `json:"variant_id,omitempty"`
	BatchID   *int64           `json:"batch_id,omitempty"`
	SaleBy    *string          `json:"sale_by,omitempty"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateInvoiceRequest is the inbound order payload.
type CreateInvoiceRequest struct {
	CompanyID int64 `json:"company_id" validate:"required"`

	ClientName string  `json:"client_name" validate:"required"`
	Number     string  `json:"number" validate:"required"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Address    *string `json:"address,omitempty"`
	Pincode    *string `json:"pincode,omitempty"`

	InvoiceDate string        `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	Items       []LineRequest `json:"items" validate:"required,min=1,dive"`

	ServiceCharge  *ChargeSpec      `json:"service_charge,omitempty"`
	Discount       *ChargeSpec      `json:"discount,omitempty"`
	DeliveryCharge *decimal.Decimal `json:"delivery_charge,omitempty"`

	PaymentMethod     string           `json:"payment_method" validate:"required,oneof=cash online card credit self"`
	CreditPaymentType *string          `json:"credit_payment_type,omitempty" validate:"omitempty,oneof=full partial"`
	PartialAmount     *decimal.Decimal `json:"partial_amount,omitempty"`
	BankAccountID     *int64           `json:"bank_account_id,omitempty"`
	IssuedBy          int64            `json:"issued_by"`
}

// checkAmounts covers the numeric rules the struct tags cannot express.
func (r CreateInvoiceRequest) checkAmounts() []shared.FieldViolation {
	var violations []shared.FieldViolation
	for i, line := range r.Items {
		if !line.Quantity.GreaterThan(decimal.Zero) {
			violations = append(violations, shared.Violationf(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero"))
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			violations = append(violations, shared.Violationf(fmt.Sprintf("items[%d].unit_price", i), "must not be negative"))
		}
	}
	if r.DeliveryCharge != nil && r.DeliveryCharge.IsNegative() {
		violations = append(violations, shared.Violationf("delivery_charge", "must not be negative"))
	}
	for _, spec := range []struct {
		field  string
		charge *ChargeSpec
	}{{"service_charge", r.ServiceCharge}, {"discount", r.Discount}} {
		if spec.charge != nil && spec.charge.Value.IsNegative() {
			violations = append(violations, shared.Violationf(spec.field+".value", "must not be negative"))
		}
	}
	if r.PartialAmount != nil && r.PartialAmount.IsNegative() {
		violations = append(violations, shared.Violationf("partial_amount", "must not be negative"))
	}
	if r.PaymentMethod != string(PaymentCredit) && r.CreditPaymentType != nil {
		violations = append(violations, shared.Violationf("credit_payment_type", "only valid for credit invoices"))
	}
	return violations
}

func (r CreateInvoiceRequest) parsedDate() (time.Time, error) {
	return time.Parse("2006-01-02", r.InvoiceDate)
}

func (c *ChargeSpec) toCharge() *pricing.Charge {
	if c == nil {
		return nil
	}
	return &pricing.Charge{Type: pricing.ChargeType(c.Type), Value: c.Value}
}

// ListInvoicesRequest filters the invoice listing. Zero-valued filters are
// ignored.
type ListInvoicesRequest struct {
	CompanyID  int64
	CustomerID int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int32
}
