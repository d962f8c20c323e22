package items

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeRepo struct {
	items    map[int64]Item
	variants map[int64]Variant
	taxes    map[int64][]TaxRate
	getCalls int
}

func (r *fakeRepo) GetItem(ctx context.Context, companyID, itemID int64) (*Item, error) {
	r.getCalls++
	item, ok := r.items[itemID]
	if !ok || item.CompanyID != companyID {
		return nil, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return &item, nil
}

func (r *fakeRepo) GetVariant(ctx context.Context, companyID, itemID, variantID int64) (*Variant, error) {
	variant, ok := r.variants[variantID]
	if !ok || variant.ItemID != itemID {
		return nil, fmt.Errorf("variant %d of item %d: %w", variantID, itemID, shared.ErrNotFound)
	}
	return &variant, nil
}

func (r *fakeRepo) ListTaxRates(ctx context.Context, companyID, itemID int64) ([]TaxRate, error) {
	return r.taxes[itemID], nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute))
}

func TestResolveSumsTaxRates(t *testing.T) {
	repo := &fakeRepo{
		items: map[int64]Item{10: {ID: 10, CompanyID: 1, Name: "Espresso", SalePrice: decPtr("100")}},
		taxes: map[int64][]TaxRate{10: {
			{ID: 1, Name: "CGST", Percent: dec("9")},
			{ID: 2, Name: "SGST", Percent: dec("9")},
		}},
	}
	svc := newTestService(t, repo)

	resolved, err := svc.Resolve(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.True(t, resolved.UnitPrice.Equal(dec("100")))
	require.True(t, resolved.TaxPercent.Equal(dec("18")), "tax %s", resolved.TaxPercent)
}

func TestResolveVariantPriceOverrides(t *testing.T) {
	repo := &fakeRepo{
		items:    map[int64]Item{10: {ID: 10, CompanyID: 1, SalePrice: decPtr("100")}},
		variants: map[int64]Variant{5: {ID: 5, ItemID: 10, Price: decPtr("140")}},
	}
	svc := newTestService(t, repo)

	variantID := int64(5)
	resolved, err := svc.Resolve(context.Background(), 1, 10, &variantID)
	require.NoError(t, err)
	require.True(t, resolved.UnitPrice.Equal(dec("140")))
}

func TestResolveVariantSecondaryPriceFallback(t *testing.T) {
	repo := &fakeRepo{
		items:    map[int64]Item{10: {ID: 10, CompanyID: 1, SalePrice: decPtr("100")}},
		variants: map[int64]Variant{5: {ID: 5, ItemID: 10, SecondaryPrice: decPtr("120")}},
	}
	svc := newTestService(t, repo)

	variantID := int64(5)
	resolved, err := svc.Resolve(context.Background(), 1, 10, &variantID)
	require.NoError(t, err)
	require.True(t, resolved.UnitPrice.Equal(dec("120")))
}

func TestResolvePriceFallbackChain(t *testing.T) {
	repo := &fakeRepo{items: map[int64]Item{
		10: {ID: 10, CompanyID: 1, RegularPrice: decPtr("80")},
		11: {ID: 11, CompanyID: 1},
	}}
	svc := newTestService(t, repo)

	resolved, err := svc.Resolve(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.True(t, resolved.UnitPrice.Equal(dec("80")), "regular price fallback")

	resolved, err = svc.Resolve(context.Background(), 1, 11, nil)
	require.NoError(t, err)
	require.True(t, resolved.UnitPrice.IsZero(), "no price defaults to zero")
}

func TestResolveUnknownItem(t *testing.T) {
	svc := newTestService(t, &fakeRepo{items: map[int64]Item{}})

	_, err := svc.Resolve(context.Background(), 1, 99, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveUnknownVariant(t *testing.T) {
	repo := &fakeRepo{items: map[int64]Item{10: {ID: 10, CompanyID: 1, SalePrice: decPtr("100")}}}
	svc := newTestService(t, repo)

	variantID := int64(77)
	_, err := svc.Resolve(context.Background(), 1, 10, &variantID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolveCachesBundles(t *testing.T) {
	repo := &fakeRepo{items: map[int64]Item{10: {ID: 10, CompanyID: 1, SalePrice: decPtr("100")}}}
	svc := newTestService(t, repo)

	_, err := svc.Resolve(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.Equal(t, 1, repo.getCalls, "second resolve must hit the cache")

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Resolve(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.Equal(t, 2, repo.getCalls, "bump must invalidate")
}

func TestTenantIsolation(t *testing.T) {
	repo := &fakeRepo{items: map[int64]Item{10: {ID: 10, CompanyID: 1, SalePrice: decPtr("100")}}}
	svc := newTestService(t, repo)

	_, err := svc.Resolve(context.Background(), 2, 10, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
