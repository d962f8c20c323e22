package companies

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestInvoiceLimitFor(t *testing.T) {
	pkg := Package{MonthlyInvoiceLimit: 100, AnnualInvoiceLimit: 1000, ThreeYearInvoiceLimit: 2500}

	cases := []struct {
		subscription string
		want         int64
	}{
		{shared.SubscriptionMonthly, 100},
		{shared.SubscriptionAnnual, 1000},
		{shared.SubscriptionThreeYear, 2500},
	}
	for _, tc := range cases {
		limit, err := pkg.InvoiceLimitFor(tc.subscription)
		require.NoError(t, err)
		require.Equal(t, tc.want, limit)
	}
}

func TestInvoiceLimitForUnknownSubscription(t *testing.T) {
	_, err := Package{}.InvoiceLimitFor("weekly")
	require.ErrorIs(t, err, shared.ErrUnknownSubscription)
}
