package types

// EventKind is the closed set of provider notifications the engine handles.
type EventKind string

const (
	EventKindUnknown EventKind = ""

	EventKindSubscriptionCreated  EventKind = "subscription.created"
	EventKindSubscriptionUpdated  EventKind = "subscription.updated"
	EventKindSubscriptionCanceled EventKind = "subscription.canceled"
	EventKindSubscriptionPastDue  EventKind = "subscription.past_due"
	EventKindSubscriptionPaused   EventKind = "subscription.paused"
	EventKindSubscriptionResumed  EventKind = "subscription.resumed"

	EventKindTransactionCompleted     EventKind = "transaction.completed"
	EventKindTransactionPaymentFailed EventKind = "transaction.payment_failed"
	EventKindTransactionRefunded      EventKind = "transaction.refunded"
)

var knownEventKinds = []EventKind{
	EventKindSubscriptionCreated,
	EventKindSubscriptionUpdated,
	EventKindSubscriptionCanceled,
	EventKindSubscriptionPastDue,
	EventKindSubscriptionPaused,
	EventKindSubscriptionResumed,
	EventKindTransactionCompleted,
	EventKindTransactionPaymentFailed,
	EventKindTransactionRefunded,
}

// EventKinds returns every known kind, excluding EventKindUnknown.
func EventKinds() []EventKind {
	out := make([]EventKind, len(knownEventKinds))
	copy(out, knownEventKinds)
	return out
}

// ParseEventKind maps a provider event_type to a known kind. Unrecognized
// values yield EventKindUnknown and false.
func ParseEventKind(s string) (EventKind, bool) {
	for _, k := range knownEventKinds {
		if string(k) == s {
			return k, true
		}
	}
	return EventKindUnknown, false
}

func (k EventKind) IsSubscription() bool {
	switch k {
	case EventKindSubscriptionCreated, EventKindSubscriptionUpdated, EventKindSubscriptionCanceled,
		EventKindSubscriptionPastDue, EventKindSubscriptionPaused, EventKindSubscriptionResumed:
		return true
	}
	return false
}

func (k EventKind) IsTransaction() bool {
	switch k {
	case EventKindTransactionCompleted, EventKindTransactionPaymentFailed, EventKindTransactionRefunded:
		return true
	}
	return false
}
