package subscription

import (
	"time"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// BuildState computes the canonical record implied by a provider payload.
// kind is EventKindUnknown for a pull from the provider, in which case the
// payload status is taken as is.
func BuildState(kind types.EventKind, p *paddle.Subscription, existing *models.Subscription, owner string, now time.Time) *models.Subscription {
	status := statusFor(kind, p)

	out := &models.Subscription{
		UserID:                 owner,
		ProviderSubscriptionID: p.ID,
		ProviderCustomerID:     p.CustomerID,
		Status:                 status,
		CurrentPeriodEnd:       p.PeriodEnd(),
		NextBillingDate:        p.NextBilledAt,
		CancelAtPeriodEnd:      status == types.SubscriptionStatusCanceled || p.CancelScheduled(),
		CanceledAt:             p.CanceledAt,
		PausedAt:               p.PausedAt,
	}
	out.PriceID, out.Price, out.Currency = p.PrimaryPrice()

	if existing != nil {
		out.ID = existing.ID
		out.CreatedAt = existing.CreatedAt
		if out.PriceID == "" {
			out.PriceID, out.Price, out.Currency = existing.PriceID, existing.Price, existing.Currency
		}
		if out.CurrentPeriodEnd == nil {
			out.CurrentPeriodEnd = existing.CurrentPeriodEnd
		}
		if out.ProviderCustomerID == "" {
			out.ProviderCustomerID = existing.ProviderCustomerID
		}
	}

	switch status {
	case types.SubscriptionStatusCanceled:
		if out.CanceledAt == nil {
			if existing != nil && existing.CanceledAt != nil {
				out.CanceledAt = existing.CanceledAt
			} else {
				t := now
				out.CanceledAt = &t
			}
		}
		out.NextBillingDate = nil
	case types.SubscriptionStatusPaused:
		if out.PausedAt == nil {
			t := now
			out.PausedAt = &t
		}
	}

	if kind == types.EventKindSubscriptionResumed {
		out.CanceledAt = nil
		out.PausedAt = nil
		out.CancelAtPeriodEnd = p.CancelScheduled()
	}
	return out
}

func statusFor(kind types.EventKind, p *paddle.Subscription) types.SubscriptionStatus {
	switch kind {
	case types.EventKindSubscriptionCanceled:
		return types.SubscriptionStatusCanceled
	case types.EventKindSubscriptionPastDue:
		return types.SubscriptionStatusPastDue
	case types.EventKindSubscriptionPaused:
		return types.SubscriptionStatusPaused
	case types.EventKindSubscriptionResumed:
		if p.Status == string(types.SubscriptionStatusTrialing) {
			return types.SubscriptionStatusTrialing
		}
		return types.SubscriptionStatusActive
	}
	return types.SubscriptionStatus(p.Status)
}

// actionFor maps the triggering kind to the audit action of the transition.
func actionFor(kind types.EventKind) types.AuditAction {
	switch kind {
	case types.EventKindSubscriptionCreated:
		return types.AuditActionSubscriptionCreated
	case types.EventKindSubscriptionUpdated:
		return types.AuditActionSubscriptionUpdated
	case types.EventKindSubscriptionCanceled:
		return types.AuditActionSubscriptionCanceled
	case types.EventKindSubscriptionPastDue:
		return types.AuditActionSubscriptionPastDue
	case types.EventKindSubscriptionPaused:
		return types.AuditActionSubscriptionPaused
	case types.EventKindSubscriptionResumed:
		return types.AuditActionSubscriptionResumed
	}
	return types.AuditActionSubscriptionSynced
}

// sameState reports whether b carries nothing new over a. Bookkeeping
// columns such as UpdatedAt are ignored.
func sameState(a, b *models.Subscription) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID &&
		a.ProviderCustomerID == b.ProviderCustomerID &&
		a.Status == b.Status &&
		a.PriceID == b.PriceID &&
		a.Price == b.Price &&
		a.Currency == b.Currency &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd &&
		sameTime(a.CurrentPeriodEnd, b.CurrentPeriodEnd) &&
		sameTime(a.NextBillingDate, b.NextBillingDate) &&
		sameTime(a.CanceledAt, b.CanceledAt) &&
		sameTime(a.PausedAt, b.PausedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// planChange diffs price ids. Nil when nothing comparable changed.
func planChange(before, after *models.Subscription, eventID string) *models.PlanChangeRecord {
	if before == nil || before.PriceID == "" || after.PriceID == "" || before.PriceID == after.PriceID {
		return nil
	}
	return &models.PlanChangeRecord{
		FromPriceID: before.PriceID,
		ToPriceID:   after.PriceID,
		FromPrice:   before.Price,
		ToPrice:     after.Price,
		Direction:   types.ClassifyPlanChange(before.Price, after.Price),
		EventID:     eventID,
	}
}
