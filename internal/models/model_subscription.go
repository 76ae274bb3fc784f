package models

import (
	"time"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// Subscription is the canonical record of a provider subscription.
// ProviderSubscriptionID is the natural key; ID is internal.
type Subscription struct {
	ID                     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID                 string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	ProviderSubscriptionID string                   `gorm:"column:provider_subscription_id;type:varchar(128);not null;uniqueIndex" json:"provider_subscription_id"`
	ProviderCustomerID     string                   `gorm:"column:provider_customer_id;type:varchar(128)" json:"provider_customer_id"`
	Status                 types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	PriceID                string                   `gorm:"column:price_id;type:varchar(128)" json:"price_id"`
	// Price is in minor currency units.
	Price             int64      `gorm:"column:price;not null;default:0" json:"price"`
	Currency          string     `gorm:"column:currency;type:varchar(8)" json:"currency"`
	CurrentPeriodEnd  *time.Time `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	NextBillingDate   *time.Time `gorm:"column:next_billing_date;default:null" json:"next_billing_date"`
	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	CanceledAt        *time.Time `gorm:"column:canceled_at;default:null" json:"canceled_at"`
	PausedAt          *time.Time `gorm:"column:paused_at;default:null" json:"paused_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// IsPremium reports whether the subscription grants premium access.
func (s *Subscription) IsPremium() bool {
	return s != nil && s.Status.Premium()
}

// RenewalDate is the next billing date, falling back to the period end.
func (s *Subscription) RenewalDate() *time.Time {
	if s == nil {
		return nil
	}
	if s.NextBillingDate != nil {
		return s.NextBillingDate
	}
	return s.CurrentPeriodEnd
}

// Clone returns a shallow copy safe for before/after snapshots.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
