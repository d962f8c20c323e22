package items

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Service resolves item pricing bundles, caching stable reference data.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Resolve looks up the effective unit price and tax percentage for an item,
// optionally narrowed to a variant. Missing items or variants surface as
// NotFound and abort the caller's whole order.
func (s *Service) Resolve(ctx context.Context, companyID, itemID int64, variantID *int64) (*ResolvedPricing, error) {
	key, err := s.cache.BuildKey(ctx, "masterdata:items:pricing",
		strconv.FormatInt(companyID, 10), strconv.FormatInt(itemID, 10), variantKeyPart(variantID))
	if err != nil {
		return nil, err
	}

	var resolved ResolvedPricing
	err = s.cache.FetchJSON(ctx, key, &resolved, func(ctx context.Context) (any, error) {
		value, err, _ := s.group.Do(key, func() (any, error) {
			return s.load(ctx, companyID, itemID, variantID)
		})
		return value, err
	})
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (s *Service) load(ctx context.Context, companyID, itemID int64, variantID *int64) (*ResolvedPricing, error) {
	item, err := s.repo.GetItem(ctx, companyID, itemID)
	if err != nil {
		return nil, err
	}

	var variant *Variant
	if variantID != nil {
		variant, err = s.repo.GetVariant(ctx, companyID, itemID, *variantID)
		if err != nil {
			return nil, err
		}
	}

	rates, err := s.repo.ListTaxRates(ctx, companyID, itemID)
	if err != nil {
		return nil, err
	}
	taxPercent := decimal.Zero
	for _, rate := range rates {
		taxPercent = taxPercent.Add(rate.Percent)
	}

	return &ResolvedPricing{
		ItemID:     item.ID,
		VariantID:  variantID,
		ItemName:   item.Name,
		UnitPrice:  UnitPriceFor(*item, variant),
		TaxPercent: taxPercent,
		TaxRates:   rates,
	}, nil
}

// Invalidate drops cached pricing after reference-data edits.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func variantKeyPart(variantID *int64) string {
	if variantID == nil {
		return "base"
	}
	return fmt.Sprintf("v%d", *variantID)
}
