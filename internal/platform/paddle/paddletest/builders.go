package paddletest

import (
	"encoding/json"
	"time"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
)

// Subscription builds a valid provider subscription owned by userID with a
// single price item. periodEnd is also used as the next billing date.
func Subscription(id, userID, status, priceID string, amount string, periodEnd time.Time) *paddle.Subscription {
	end := periodEnd.UTC()
	return &paddle.Subscription{
		ID:           id,
		Status:       status,
		CustomerID:   "cus_" + id,
		CurrencyCode: "USD",
		Items: []paddle.Item{{
			Price:    paddle.Price{ID: priceID, UnitPrice: paddle.UnitPrice{Amount: amount, CurrencyCode: "USD"}},
			Quantity: 1,
		}},
		CurrentBillingPeriod: &paddle.BillingPeriod{StartsAt: end.AddDate(0, -1, 0), EndsAt: end},
		NextBilledAt:         &end,
		CustomData:           paddle.CustomData{"userId": userID},
	}
}

// Transaction builds a completed transaction linked to subscriptionID.
func Transaction(id, userID, subscriptionID string) *paddle.Transaction {
	return &paddle.Transaction{
		ID:             id,
		Status:         "completed",
		CustomerID:     "cus_" + subscriptionID,
		SubscriptionID: subscriptionID,
		CurrencyCode:   "USD",
		Details:        paddle.TransactionDetails{Totals: paddle.Totals{Total: "1000", CurrencyCode: "USD"}},
		CustomData:     paddle.CustomData{"user_id": userID},
	}
}

// Envelope marshals a webhook body.
func Envelope(eventID, eventType string, occurredAt time.Time, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	b, err := json.Marshal(paddle.Notification{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	})
	if err != nil {
		panic(err)
	}
	return b
}
