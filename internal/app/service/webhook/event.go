package webhook

import (
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// Event is an admitted notification with its typed payload. Exactly one of
// Subscription or Transaction is set.
type Event struct {
	Notification *paddle.Notification
	Kind         types.EventKind
	Subscription *paddle.Subscription
	Transaction  *paddle.Transaction
}

func (e *Event) ID() string { return e.Notification.EventID }

// decodeEvent validates the data object for kind before anything is written.
func decodeEvent(kind types.EventKind, n *paddle.Notification) (*Event, error) {
	ev := &Event{Notification: n, Kind: kind}
	var err error
	switch {
	case kind.IsSubscription():
		ev.Subscription, err = paddle.DecodeSubscription(n.Data)
	case kind.IsTransaction():
		ev.Transaction, err = paddle.DecodeTransaction(n.Data)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// owner returns the user id claimed by the payload metadata.
func (e *Event) owner() string {
	switch {
	case e.Subscription != nil:
		return e.Subscription.CustomData.UserID()
	case e.Transaction != nil:
		return e.Transaction.CustomData.UserID()
	}
	return ""
}

// subscriptionID returns the provider subscription the event refers to.
func (e *Event) subscriptionID() string {
	switch {
	case e.Subscription != nil:
		return e.Subscription.ID
	case e.Transaction != nil:
		return e.Transaction.SubscriptionID
	}
	return ""
}
