package invoices

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod records how an invoice was settled at the counter.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
	PaymentCard   PaymentMethod = "card"
	PaymentCredit PaymentMethod = "credit"
	PaymentSelf   PaymentMethod = "self"
)

// Valid reports whether the method is one of the accepted values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentOnline, PaymentCard, PaymentCredit, PaymentSelf:
		return true
	}
	return false
}

// Invoice is the persisted sale header. It is written once, together with
// its items, and only status flags mutate afterwards.
type Invoice struct {
	ID         int64  `json:"id"`
	CompanyID  int64  `json:"company_id"`
	CustomerID int64  `json:"customer_id"`
	Number     string `json:"invoice_number"`
	// Sequence is the numeric tail of Number, kept separately so the next
	// number for the company/day can be read without parsing.
	Sequence    int64     `json:"sequence"`
	InvoiceDate time.Time `json:"invoice_date"`

	ClientName   string  `json:"client_name"`
	ClientNumber string  `json:"client_number"`
	ClientEmail  *string `json:"client_email,omitempty"`

	SubTotal             decimal.Decimal `json:"sub_total"`
	ServiceChargeAmount  decimal.Decimal `json:"service_charge_amount"`
	ServiceChargePercent decimal.Decimal `json:"service_charge_percent"`
	ServiceChargeGST     decimal.Decimal `json:"service_charge_gst"`
	ServiceChargeFinal   decimal.Decimal `json:"service_charge_final"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	DiscountPercentage   decimal.Decimal `json:"discount_percentage"`
	DeliveryCharge       decimal.Decimal `json:"delivery_charge"`
	FinalAmount          decimal.Decimal `json:"final_amount"`

	PaymentMethod  PaymentMethod `json:"payment_method"`
	BankAccountID  *int64        `json:"bank_account_id,omitempty"`
	IssuedBy       int64         `json:"issued_by"`
	SentOnWhatsApp bool          `json:"sent_on_whatsapp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem is one line of an invoice, immutable after creation.
// Position preserves the order the client submitted the lines in.
type InvoiceItem struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	ItemID        int64           `json:"item_id"`
	VariantID     *int64          `json:"variant_id,omitempty"`
	BatchID       *int64          `json:"batch_id,omitempty"`
	ItemName      string          `json:"item_name"`
	SaleBy        *string         `json:"sale_by,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	Position      int32           `json:"position"`
}

// CustomerHistory is the per-purchase audit row written alongside each
// invoice.
type CustomerHistory struct {
	CompanyID  int64
	CustomerID int64
	InvoiceID  int64
	Amount     decimal.Decimal
	Note       string
}

// FormatNumber renders the invoice number as company code, YYMMDD date and
// the zero-padded day sequence, e.g. ACME250601007. Sequences past 999 grow
// past three digits instead of truncating.
func FormatNumber(companyCode string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%03d", companyCode, date.Format("060102"), seq)
}
