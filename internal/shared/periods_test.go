package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscriptionPeriodMonthly(t *testing.T) {
	now := time.Date(2025, 6, 15, 13, 45, 0, 0, time.UTC)
	start, end, err := SubscriptionPeriod(SubscriptionMonthly, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestSubscriptionPeriodAnnual(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	start, end, err := SubscriptionPeriod(SubscriptionAnnual, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestSubscriptionPeriodThreeYear(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	start, end, err := SubscriptionPeriod(SubscriptionThreeYear, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestSubscriptionPeriodDecemberRollover(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	start, end, err := SubscriptionPeriod(SubscriptionMonthly, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestSubscriptionPeriodUnknown(t *testing.T) {
	_, _, err := SubscriptionPeriod("weekly", time.Now())
	require.ErrorIs(t, err, ErrUnknownSubscription)
}
