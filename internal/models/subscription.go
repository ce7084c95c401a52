package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription entitles a customer to recipes from one preference for
// a paid period. Never mutated after creation; a customer may hold
// several overlapping subscriptions at once.
type Subscription struct {
	gorm.Model

	SubscriptionID string    `json:"subscription_id" gorm:"uniqueIndex"`
	OwnerID        uint      `json:"owner_id" gorm:"index"`
	PreferenceID   uint      `json:"preference_id"`
	Persons        int       `json:"persons"`
	RegisteredOn   time.Time `json:"registered_on"`
	PaidUntil      time.Time `json:"paid_until"`
}

// BeforeCreate hook to auto-generate the subscription reference
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.SubscriptionID == "" {
		s.SubscriptionID = uuid.NewString()
	}
	return nil
}

// ActiveAt reports whether the subscription is still paid for at the
// given date. Paid-until exactly equal to asOf counts as lapsed.
func (s *Subscription) ActiveAt(asOf time.Time) bool {
	return s.PaidUntil.After(asOf)
}

// SubscriptionPeriods are the period lengths, in months, a customer
// can buy.
var SubscriptionPeriods = []int{1, 3, 6, 12}
