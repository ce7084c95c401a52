package services

import (
	"fmt"
	"time"

	"github.com/platefull/platefull-backend/internal/dates"
	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// SubscriptionLedger creates and queries subscriptions. Creation is
// the only write; records are immutable afterwards.
type SubscriptionLedger struct {
	store storage.Store
	clock func() time.Time
}

// NewSubscriptionLedger creates a ledger. Pass a fixed clock in tests;
// nil uses time.Now.
func NewSubscriptionLedger(store storage.Store, clock func() time.Time) *SubscriptionLedger {
	if clock == nil {
		clock = time.Now
	}
	return &SubscriptionLedger{store: store, clock: clock}
}

// Create materializes a subscription starting today and paid until
// today advanced by the period. Overlapping subscriptions for the
// same owner are allowed.
func (l *SubscriptionLedger) Create(owner *models.Customer, preferenceID uint, persons, periodMonths int) (*models.Subscription, error) {
	if persons < 1 {
		return nil, fmt.Errorf("person count must be at least 1, got %d", persons)
	}
	if !validPeriod(periodMonths) {
		return nil, fmt.Errorf("unsupported period of %d months", periodMonths)
	}

	today := dates.StartOfDay(l.clock())
	return l.store.CreateSubscription(&models.Subscription{
		OwnerID:      owner.ID,
		PreferenceID: preferenceID,
		Persons:      persons,
		RegisteredOn: today,
		PaidUntil:    dates.AddMonths(today, periodMonths),
	})
}

// ListActive returns the owner's subscriptions whose paid-until date
// is still in the future, in insertion order.
func (l *SubscriptionLedger) ListActive(ownerID uint) ([]*models.Subscription, error) {
	return l.store.ActiveSubscriptionsForOwner(ownerID, dates.StartOfDay(l.clock()))
}

func validPeriod(months int) bool {
	for _, period := range models.SubscriptionPeriods {
		if months == period {
			return true
		}
	}
	return false
}
