package companies

import (
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Company is the tenant owning invoices, customers and reference data.
type Company struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	PackageID    int64  `json:"package_id"`
	Subscription string `json:"subscription"`
}

// Package is a subscription plan carrying invoice quotas per billing cycle.
type Package struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	MonthlyInvoiceLimit   int64  `json:"monthly_invoice_limit"`
	AnnualInvoiceLimit    int64  `json:"annual_invoice_limit"`
	ThreeYearInvoiceLimit int64  `json:"three_year_invoice_limit"`
}

// InvoiceLimitFor returns the quota applicable to the subscription type.
func (p Package) InvoiceLimitFor(subscription string) (int64, error) {
	switch subscription {
	case shared.SubscriptionMonthly:
		return p.MonthlyInvoiceLimit, nil
	case shared.SubscriptionAnnual:
		return p.AnnualInvoiceLimit, nil
	case shared.SubscriptionThreeYear:
		return p.ThreeYearInvoiceLimit, nil
	default:
		return 0, fmt.Errorf("%w: %q", shared.ErrUnknownSubscription, subscription)
	}
}
