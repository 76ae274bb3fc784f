// Package paddle holds the typed notification payloads and the REST client
// for the billing provider.
package paddle

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Notification is the webhook envelope. Data is decoded per event kind.
type Notification struct {
	EventID    string          `json:"event_id" validate:"required"`
	EventType  string          `json:"event_type" validate:"required"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// CustomData is the opaque metadata blob attached at checkout.
type CustomData map[string]any

// userIDKeys lists the spellings clients have used for the owner id.
var userIDKeys = []string{"userId", "user_id", "uid"}

// UserID returns the owner id carried in the metadata, or "".
func (d CustomData) UserID() string {
	for _, k := range userIDKeys {
		switch v := d[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

type UnitPrice struct {
	Amount       string `json:"amount" validate:"required,numeric"`
	CurrencyCode string `json:"currency_code" validate:"required,len=3"`
}

type Price struct {
	ID        string    `json:"id" validate:"required"`
	UnitPrice UnitPrice `json:"unit_price"`
}

type Item struct {
	Price    Price `json:"price"`
	Quantity int   `json:"quantity" validate:"gte=0"`
}

type BillingPeriod struct {
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

type ScheduledChange struct {
	Action      string     `json:"action" validate:"required,oneof=cancel pause resume"`
	EffectiveAt *time.Time `json:"effective_at"`
}

// Subscription is the provider's subscription entity, in webhook data and in
// REST responses alike.
type Subscription struct {
	ID                   string           `json:"id" validate:"required"`
	Status               string           `json:"status" validate:"required,oneof=active trialing past_due paused canceled"`
	CustomerID           string           `json:"customer_id" validate:"required"`
	CurrencyCode         string           `json:"currency_code"`
	Items                []Item           `json:"items" validate:"omitempty,dive"`
	CurrentBillingPeriod *BillingPeriod   `json:"current_billing_period" validate:"omitempty"`
	NextBilledAt         *time.Time       `json:"next_billed_at"`
	ScheduledChange      *ScheduledChange `json:"scheduled_change" validate:"omitempty"`
	CanceledAt           *time.Time       `json:"canceled_at"`
	PausedAt             *time.Time       `json:"paused_at"`
	CustomData           CustomData       `json:"custom_data"`
}

// PrimaryPrice returns the first item's price id and amount in minor units.
func (s *Subscription) PrimaryPrice() (id string, amount int64, currency string) {
	currency = s.CurrencyCode
	if len(s.Items) == 0 {
		return "", 0, currency
	}
	p := s.Items[0].Price
	amount, _ = strconv.ParseInt(p.UnitPrice.Amount, 10, 64)
	if p.UnitPrice.CurrencyCode != "" {
		currency = p.UnitPrice.CurrencyCode
	}
	return p.ID, amount, currency
}

// PeriodEnd returns the end of the current billing period, if any.
func (s *Subscription) PeriodEnd() *time.Time {
	if s.CurrentBillingPeriod == nil || s.CurrentBillingPeriod.EndsAt.IsZero() {
		return nil
	}
	t := s.CurrentBillingPeriod.EndsAt
	return &t
}

// CancelScheduled reports a pending cancel at period end.
func (s *Subscription) CancelScheduled() bool {
	return s.ScheduledChange != nil && s.ScheduledChange.Action == "cancel"
}

type Totals struct {
	Total        string `json:"total" validate:"omitempty,numeric"`
	CurrencyCode string `json:"currency_code"`
}

type TransactionDetails struct {
	Totals Totals `json:"totals"`
}

type Transaction struct {
	ID             string             `json:"id" validate:"required"`
	Status         string             `json:"status" validate:"required"`
	CustomerID     string             `json:"customer_id"`
	SubscriptionID string             `json:"subscription_id"`
	CurrencyCode   string             `json:"currency_code"`
	Details        TransactionDetails `json:"details"`
	CustomData     CustomData         `json:"custom_data"`
}
