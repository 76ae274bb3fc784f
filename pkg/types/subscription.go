package types

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusPaused   SubscriptionStatus = "paused"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Premium reports whether the status grants premium access.
// past_due still counts as a live subscription but does not grant premium.
func (s SubscriptionStatus) Premium() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Live reports whether the subscription still occupies the user's single
// active slot.
func (s SubscriptionStatus) Live() bool {
	return s.Premium() || s == SubscriptionStatusPastDue
}

// LiveStatuses lists the statuses for which Live is true.
func LiveStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue}
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue,
		SubscriptionStatusPaused, SubscriptionStatusCanceled:
		return true
	}
	return false
}

type PlanChangeDirection string

const (
	PlanChangeUpgrade   PlanChangeDirection = "upgrade"
	PlanChangeDowngrade PlanChangeDirection = "downgrade"
	PlanChangeLateral   PlanChangeDirection = "lateral"
)

// ClassifyPlanChange compares prices in minor units.
func ClassifyPlanChange(fromPrice, toPrice int64) PlanChangeDirection {
	switch {
	case toPrice > fromPrice:
		return PlanChangeUpgrade
	case toPrice < fromPrice:
		return PlanChangeDowngrade
	default:
		return PlanChangeLateral
	}
}

// Plan maps provider price ids to an internal plan name.
type Plan struct {
	ID       string   `json:"id" mapstructure:"id"`
	Name     string   `json:"name" mapstructure:"name"`
	PriceIDs []string `json:"price_ids" mapstructure:"price_ids"`
}

const (
	PlanFree    = "free"
	PlanPremium = "premium"
)
