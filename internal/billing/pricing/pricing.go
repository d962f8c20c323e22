// Package pricing computes invoice monetary breakdowns from resolved order
// lines. It is pure: reference-data resolution and persistence live in the
// calling modules.
package pricing

import (
	"github.com/shopspring/decimal"
)

// ChargeType selects how a service charge or discount value is interpreted.
type ChargeType string

const (
	ChargeTypeAmount     ChargeType = "amount"
	ChargeTypePercentage ChargeType = "percentage"
)

// GST applied on service charges, fixed at 18%.
var serviceChargeGSTRate = decimal.New(18, -2)

var oneHundred = decimal.New(100, 0)

// Line is one resolved order line: unit price and tax already looked up.
type Line struct {
	ItemID     int64
	VariantID  *int64
	BatchID    *int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TaxPercent decimal.Decimal
}

// LineResult carries the computed amounts for one line.
//
// TaxAmount is charged per unit, and LineTotal is the stored item total
// (unit_price*quantity + tax_amount). TotalWithTax is the line's
// contribution to the order subtotal, (unit_price + tax_amount)*quantity.
// The two differ for quantities other than one; both follow the billing
// rules exactly.
type LineResult struct {
	Line
	TaxAmount    decimal.Decimal
	LineTotal    decimal.Decimal
	TotalWithTax decimal.Decimal
}

// Charge is a service-charge or discount specification.
type Charge struct {
	Type  ChargeType
	Value decimal.Decimal
}

// Breakdown is the full order-level pricing result.
type Breakdown struct {
	Lines []LineResult

	Subtotal decimal.Decimal

	ServiceChargeAmount  decimal.Decimal
	ServiceChargePercent decimal.Decimal
	ServiceChargeGST     decimal.Decimal
	ServiceChargeFinal   decimal.Decimal

	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal

	DeliveryCharge decimal.Decimal

	// FinalAmount is rounded to whole currency units, then the delivery
	// charge is added on top.
	FinalAmount decimal.Decimal
}

// CalculateLine computes the per-line amounts.
func CalculateLine(line Line) LineResult {
	taxAmount := line.UnitPrice.Mul(line.TaxPercent).Div(oneHundred).Round(2)
	lineTotal := line.UnitPrice.Mul(line.Quantity).Add(taxAmount).Round(2)
	totalWithTax := line.UnitPrice.Add(taxAmount).Mul(line.Quantity).Round(2)
	return LineResult{
		Line:         line,
		TaxAmount:    taxAmount,
		LineTotal:    lineTotal,
		TotalWithTax: totalWithTax,
	}
}

// Calculate computes the order breakdown. serviceCharge and discount may be
// nil when absent; deliveryCharge defaults to zero.
func Calculate(lines []Line, serviceCharge, discount *Charge, deliveryCharge decimal.Decimal) Breakdown {
	b := Breakdown{DeliveryCharge: deliveryCharge}

	subtotal := decimal.Zero
	for _, line := range lines {
		res := CalculateLine(line)
		b.Lines = append(b.Lines, res)
		subtotal = subtotal.Add(res.TotalWithTax)
	}
	b.Subtotal = subtotal.Round(2)

	if serviceCharge != nil {
		switch serviceCharge.Type {
		case ChargeTypeAmount:
			b.ServiceChargeAmount = serviceCharge.Value
			if b.Subtotal.IsZero() {
				b.ServiceChargePercent = decimal.Zero
			} else {
				b.ServiceChargePercent = serviceCharge.Value.Div(b.Subtotal).Mul(oneHundred).Round(2)
			}
		case ChargeTypePercentage:
			b.ServiceChargePercent = serviceCharge.Value
			b.ServiceChargeAmount = serviceCharge.Value.Div(oneHundred).Mul(b.Subtotal).Round(2)
		}
		b.ServiceChargeGST = b.ServiceChargeAmount.Mul(serviceChargeGSTRate).Round(2)
		b.ServiceChargeFinal = b.ServiceChargeAmount.Add(b.ServiceChargeGST)
	}

	subtotalWithService := b.Subtotal.Add(b.ServiceChargeFinal).Round(2)

	if discount != nil {
		switch discount.Type {
		case ChargeTypeAmount:
			b.DiscountAmount = discount.Value
			if subtotalWithService.IsZero() {
				b.DiscountPercentage = decimal.Zero
			} else {
				b.DiscountPercentage = discount.Value.Div(subtotalWithService).Mul(oneHundred).Round(2)
			}
		case ChargeTypePercentage:
			b.DiscountPercentage = discount.Value
			b.DiscountAmount = discount.Value.Div(oneHundred).Mul(subtotalWithService).Round(2)
		}
	}

	// Oversized discounts clamp the final amount to zero instead of being
	// rejected; the last rounding is to whole currency units.
	final := subtotalWithService.Sub(b.DiscountAmount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	b.FinalAmount = final.Round(0).Add(deliveryCharge)

	return b
}
