package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(price, taxPercent, qty string) Line {
	return Line{ItemID: 1, Quantity: d(qty), UnitPrice: d(price), TaxPercent: d(taxPercent)}
}

func TestCalculateLineTaxInclusive(t *testing.T) {
	res := CalculateLine(line("100", "18", "2"))

	require.True(t, res.TaxAmount.Equal(d("18")), "tax amount %s", res.TaxAmount)
	// Stored item total charges tax once per line.
	require.True(t, res.LineTotal.Equal(d("218")), "line total %s", res.LineTotal)
	// Subtotal contribution charges tax per unit.
	require.True(t, res.TotalWithTax.Equal(d("236")), "total with tax %s", res.TotalWithTax)
}

func TestCalculatePlainOrder(t *testing.T) {
	b := Calculate([]Line{line("100", "18", "2")}, nil, nil, decimal.Zero)

	require.True(t, b.Subtotal.Equal(d("236")))
	require.True(t, b.ServiceChargeFinal.IsZero())
	require.True(t, b.DiscountAmount.IsZero())
	require.True(t, b.FinalAmount.Equal(d("236")), "final %s", b.FinalAmount)
}

func TestCalculatePercentageDiscount(t *testing.T) {
	b := Calculate([]Line{line("1000", "0", "1")}, nil, &Charge{Type: ChargeTypePercentage, Value: d("10")}, decimal.Zero)

	require.True(t, b.DiscountAmount.Equal(d("100")), "discount %s", b.DiscountAmount)
	require.True(t, b.DiscountPercentage.Equal(d("10")))
	require.True(t, b.FinalAmount.Equal(d("900")), "final %s", b.FinalAmount)
}

func TestCalculateAmountDiscountDerivesPercentage(t *testing.T) {
	b := Calculate([]Line{line("500", "0", "1")}, nil, &Charge{Type: ChargeTypeAmount, Value: d("125")}, decimal.Zero)

	require.True(t, b.DiscountAmount.Equal(d("125")))
	require.True(t, b.DiscountPercentage.Equal(d("25")), "pct %s", b.DiscountPercentage)
	require.True(t, b.FinalAmount.Equal(d("375")))
}

func TestCalculateServiceChargePercentage(t *testing.T) {
	b := Calculate([]Line{line("1000", "0", "1")}, &Charge{Type: ChargeTypePercentage, Value: d("10")}, nil, decimal.Zero)

	require.True(t, b.ServiceChargeAmount.Equal(d("100")))
	require.True(t, b.ServiceChargePercent.Equal(d("10")))
	require.True(t, b.ServiceChargeGST.Equal(d("18")), "gst %s", b.ServiceChargeGST)
	require.True(t, b.ServiceChargeFinal.Equal(d("118")))
	require.True(t, b.FinalAmount.Equal(d("1118")))
}

func TestCalculateServiceChargeAmount(t *testing.T) {
	b := Calculate([]Line{line("200", "0", "1")}, &Charge{Type: ChargeTypeAmount, Value: d("50")}, nil, decimal.Zero)

	require.True(t, b.ServiceChargeAmount.Equal(d("50")))
	require.True(t, b.ServiceChargePercent.Equal(d("25")))
	require.True(t, b.ServiceChargeGST.Equal(d("9")))
	require.True(t, b.FinalAmount.Equal(d("259")))
}

func TestCalculateServiceChargeAmountZeroSubtotal(t *testing.T) {
	b := Calculate(nil, &Charge{Type: ChargeTypeAmount, Value: d("50")}, nil, decimal.Zero)

	require.True(t, b.ServiceChargePercent.IsZero())
	require.True(t, b.ServiceChargeAmount.Equal(d("50")))
	require.True(t, b.FinalAmount.Equal(d("59")), "final %s", b.FinalAmount)
}

func TestCalculateOversizedDiscountClampsToZero(t *testing.T) {
	b := Calculate([]Line{line("100", "0", "1")}, nil, &Charge{Type: ChargeTypeAmount, Value: d("250")}, d("40"))

	require.True(t, b.DiscountAmount.Equal(d("250")))
	require.True(t, b.FinalAmount.Equal(d("40")), "delivery survives the clamp, got %s", b.FinalAmount)
}

func TestCalculateFinalRoundsToWholeUnitsBeforeDelivery(t *testing.T) {
	// 33.40 * 3 = 100.20, rounds to 100; delivery added unrounded.
	b := Calculate([]Line{line("33.40", "0", "3")}, nil, nil, d("30.50"))

	require.True(t, b.Subtotal.Equal(d("100.20")))
	require.True(t, b.FinalAmount.Equal(d("130.50")), "final %s", b.FinalAmount)
}

func TestCalculateHalfUpRounding(t *testing.T) {
	// 236.50 rounds up to 237 on the final step.
	b := Calculate([]Line{line("236.50", "0", "1")}, nil, nil, decimal.Zero)
	require.True(t, b.FinalAmount.Equal(d("237")), "final %s", b.FinalAmount)
}

func TestCalculateMixedTaxLines(t *testing.T) {
	b := Calculate([]Line{
		line("100", "18", "1"), // 118
		line("50", "5", "2"),   // (50+2.50)*2 = 105
		line("10", "0", "3"),   // 30
	}, nil, nil, decimal.Zero)

	require.True(t, b.Subtotal.Equal(d("253")), "subtotal %s", b.Subtotal)
	require.True(t, b.FinalAmount.Equal(d("253")))
}

func TestFinalAmountNeverNegative(t *testing.T) {
	b := Calculate([]Line{line("10", "0", "1")}, nil, &Charge{Type: ChargeTypeAmount, Value: d("9999")}, decimal.Zero)
	require.False(t, b.FinalAmount.IsNegative())
	require.True(t, b.FinalAmount.IsZero())
}
