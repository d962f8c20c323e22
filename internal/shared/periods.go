package shared

import (
	"errors"
	"time"
)

// Subscription types determine how invoice quotas reset.
const (
	SubscriptionMonthly   = "monthly"
	SubscriptionAnnual    = "annual"
	SubscriptionThreeYear = "three_year"
)

// ErrUnknownSubscription indicates an unrecognised subscription type.
var ErrUnknownSubscription = errors.New("unknown subscription type")

// SubscriptionPeriod returns the inclusive start and exclusive end of the
// current quota period for the subscription type. Monthly resets each
// calendar month, annual each calendar year, three_year covers the rolling
// three calendar years ending at the current one.
func SubscriptionPeriod(subscription string, now time.Time) (time.Time, time.Time, error) {
	switch subscription {
	case SubscriptionMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0), nil
	case SubscriptionAnnual:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(1, 0, 0), nil
	case SubscriptionThreeYear:
		end := time.Date(now.Year()+1, 1, 1, 0, 0, 0, 0, now.Location())
		return end.AddDate(-3, 0, 0), end, nil
	default:
		return time.Time{}, time.Time{}, ErrUnknownSubscription
	}
}
