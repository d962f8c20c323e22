package credits

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOpenFullCredit(t *testing.T) {
	credit, err := Open(1, 2, 3, dec("500"), CreditPaymentFull, decimal.Zero)
	require.NoError(t, err)

	require.True(t, credit.TotalDue.Equal(dec("500")))
	require.True(t, credit.AmountPaid.IsZero())
	require.True(t, credit.Outstanding.Equal(dec("500")))
	require.Equal(t, StatusDue, credit.Status)
}

func TestOpenPartialCredit(t *testing.T) {
	credit, err := Open(1, 2, 3, dec("500"), CreditPaymentPartial, dec("200"))
	require.NoError(t, err)

	require.True(t, credit.TotalDue.Equal(dec("500")))
	require.True(t, credit.AmountPaid.Equal(dec("200")))
	require.True(t, credit.Outstanding.Equal(dec("300")))
	require.Equal(t, StatusPartial, credit.Status)
}

func TestOpenPartialCoveringWholeDue(t *testing.T) {
	credit, err := Open(1, 2, 3, dec("500"), CreditPaymentPartial, dec("500"))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, credit.Status)
	require.True(t, credit.Outstanding.IsZero())
}

func TestOpenPartialDefaultsToZero(t *testing.T) {
	credit, err := Open(1, 2, 3, dec("500"), CreditPaymentPartial, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, StatusDue, credit.Status)
	require.True(t, credit.Outstanding.Equal(dec("500")))
}

func TestOpenRejectsUnknownPaymentType(t *testing.T) {
	_, err := Open(1, 2, 3, dec("500"), CreditPaymentType("installment"), decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOpenRejectsNegativePartialAmount(t *testing.T) {
	_, err := Open(1, 2, 3, dec("500"), CreditPaymentPartial, dec("-10"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeriveStatus(t *testing.T) {
	require.Equal(t, StatusDue, DeriveStatus(decimal.Zero, dec("100")))
	require.Equal(t, StatusPartial, DeriveStatus(dec("40"), dec("60")))
	require.Equal(t, StatusPaid, DeriveStatus(dec("100"), decimal.Zero))
	require.Equal(t, StatusPaid, DeriveStatus(dec("100"), dec("-0.5")))
}

func TestCheckInvariantCatchesDrift(t *testing.T) {
	credit := CustomerCredit{
		TotalDue:    dec("100"),
		AmountPaid:  dec("40"),
		Outstanding: dec("59"),
		Status:      StatusPartial,
	}
	require.ErrorIs(t, credit.CheckInvariant(), shared.ErrConsistency)
}

func TestAllocateRejectsOverAllocation(t *testing.T) {
	credit := CustomerCredit{
		TotalDue:    dec("100"),
		AmountPaid:  decimal.Zero,
		Outstanding: dec("100"),
		Status:      StatusDue,
	}
	require.ErrorIs(t, credit.Allocate(dec("150")), shared.ErrConsistency)
}
