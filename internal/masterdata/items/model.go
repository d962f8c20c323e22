package items

import "github.com/shopspring/decimal"

// Item is company-owned reference data for a sellable good or service.
type Item struct {
	ID           int64            `json:"id"`
	CompanyID    int64            `json:"company_id"`
	Name         string           `json:"name"`
	SalePrice    *decimal.Decimal `json:"sale_price,omitempty"`
	RegularPrice *decimal.Decimal `json:"regular_price,omitempty"`
}

// Variant overrides the unit price of its item when selected.
type Variant struct {
	ID             int64            `json:"id"`
	ItemID         int64            `json:"item_id"`
	Name           string           `json:"name"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	SecondaryPrice *decimal.Decimal `json:"secondary_price,omitempty"`
}

// TaxRate is one percentage attached to an item. An item may carry several;
// their sum is the effective tax percentage.
type TaxRate struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
}

// ResolvedPricing is the pricing bundle consumed by the billing engine.
type ResolvedPricing struct {
	ItemID     int64           `json:"item_id"`
	VariantID  *int64          `json:"variant_id,omitempty"`
	ItemName   string          `json:"item_name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
	TaxRates   []TaxRate       `json:"tax_rates,omitempty"`
}

// UnitPriceFor resolves the effective unit price: variant price first (with
// its secondary price as fallback), then the item sale price, then the
// regular price, defaulting to zero.
func UnitPriceFor(item Item, variant *Variant) decimal.Decimal {
	if variant != nil {
		if variant.Price != nil {
			return *variant.Price
		}
		if variant.SecondaryPrice != nil {
			return *variant.SecondaryPrice
		}
	}
	if item.SalePrice != nil {
		return *item.SalePrice
	}
	if item.RegularPrice != nil {
		return *item.RegularPrice
	}
	return decimal.Zero
}
