package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle/paddletest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

var now = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func TestBuildState_StatusImpliedByKind(t *testing.T) {
	tests := []struct {
		kind    types.EventKind
		payload string
		want    types.SubscriptionStatus
	}{
		{kind: types.EventKindSubscriptionCreated, payload: "trialing", want: types.SubscriptionStatusTrialing},
		{kind: types.EventKindSubscriptionUpdated, payload: "past_due", want: types.SubscriptionStatusPastDue},
		{kind: types.EventKindSubscriptionCanceled, payload: "active", want: types.SubscriptionStatusCanceled},
		{kind: types.EventKindSubscriptionPastDue, payload: "active", want: types.SubscriptionStatusPastDue},
		{kind: types.EventKindSubscriptionPaused, payload: "active", want: types.SubscriptionStatusPaused},
		{kind: types.EventKindSubscriptionResumed, payload: "paused", want: types.SubscriptionStatusActive},
		{kind: types.EventKindSubscriptionResumed, payload: "trialing", want: types.SubscriptionStatusTrialing},
		{kind: types.EventKindUnknown, payload: "canceled", want: types.SubscriptionStatusCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.payload, func(t *testing.T) {
			p := paddletest.Subscription("sub_1", "u_1", tt.payload, "pri_monthly", "1000", now.AddDate(0, 1, 0))
			got := BuildState(tt.kind, p, nil, "u_1", now)
			require.Equal(t, tt.want, got.Status)
		})
	}
}

func TestBuildState_Canceled(t *testing.T) {
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := paddletest.Subscription("sub_1", "u_1", "canceled", "pri_monthly", "1000", end)
	p.ScheduledChange = nil

	got := BuildState(types.EventKindSubscriptionCanceled, p, nil, "u_1", now)
	require.True(t, got.CancelAtPeriodEnd)
	require.NotNil(t, got.CanceledAt)
	require.True(t, now.Equal(*got.CanceledAt))
	require.Nil(t, got.NextBillingDate)
	require.True(t, end.Equal(*got.CurrentPeriodEnd))
	require.False(t, got.IsPremium())
}

func TestBuildState_ScheduledCancelStaysPremium(t *testing.T) {
	p := paddletest.Subscription("sub_1", "u_1", "active", "pri_monthly", "1000", now.AddDate(0, 1, 0))
	p.ScheduledChange = &paddle.ScheduledChange{Action: "cancel", EffectiveAt: p.NextBilledAt}

	got := BuildState(types.EventKindSubscriptionUpdated, p, nil, "u_1", now)
	require.True(t, got.CancelAtPeriodEnd)
	require.Nil(t, got.CanceledAt)
	require.True(t, got.IsPremium())
}

func TestBuildState_ResumeClearsCancellation(t *testing.T) {
	canceledAt := now.AddDate(0, 0, -3)
	existing := &models.Subscription{
		ID: "id_1", UserID: "u_1", ProviderSubscriptionID: "sub_1",
		Status: types.SubscriptionStatusPaused, CanceledAt: &canceledAt, PausedAt: &canceledAt,
		CancelAtPeriodEnd: true, CreatedAt: now.AddDate(0, -2, 0),
	}
	p := paddletest.Subscription("sub_1", "u_1", "active", "pri_monthly", "1000", now.AddDate(0, 1, 0))

	got := BuildState(types.EventKindSubscriptionResumed, p, existing, "u_1", now)
	require.Equal(t, "id_1", got.ID)
	require.Equal(t, existing.CreatedAt, got.CreatedAt)
	require.Nil(t, got.CanceledAt)
	require.Nil(t, got.PausedAt)
	require.False(t, got.CancelAtPeriodEnd)
}

func TestBuildState_PriceFallsBackToExisting(t *testing.T) {
	existing := &models.Subscription{PriceID: "pri_yearly", Price: 9900, Currency: "EUR"}
	p := paddletest.Subscription("sub_1", "u_1", "past_due", "", "0", now)
	p.Items = nil

	got := BuildState(types.EventKindSubscriptionPastDue, p, existing, "u_1", now)
	require.Equal(t, "pri_yearly", got.PriceID)
	require.Equal(t, int64(9900), got.Price)
	require.Equal(t, "EUR", got.Currency)
}

func TestPlanChange(t *testing.T) {
	before := &models.Subscription{PriceID: "pri_basic", Price: 500}
	require.Nil(t, planChange(nil, &models.Subscription{PriceID: "pri_basic"}, "evt"))
	require.Nil(t, planChange(before, &models.Subscription{PriceID: "pri_basic", Price: 700}, "evt"))

	up := planChange(before, &models.Subscription{PriceID: "pri_pro", Price: 1500}, "evt_1")
	require.Equal(t, types.PlanChangeUpgrade, up.Direction)
	require.Equal(t, "evt_1", up.EventID)

	down := planChange(&models.Subscription{PriceID: "pri_pro", Price: 1500}, before, "evt_2")
	require.Equal(t, types.PlanChangeDowngrade, down.Direction)

	lateral := planChange(before, &models.Subscription{PriceID: "pri_basic_eur", Price: 500}, "evt_3")
	require.Equal(t, types.PlanChangeLateral, lateral.Direction)
}

func TestSameState(t *testing.T) {
	base := BuildState(types.EventKindUnknown, paddletest.Subscription("sub_1", "u_1", "active", "pri_pro", "1500", now.AddDate(0, 1, 0)), nil, "u_1", now)
	require.True(t, sameState(base, base.Clone()))

	later := base.Clone()
	later.UpdatedAt = now.Add(time.Hour)
	require.True(t, sameState(base, later))

	end := *base.CurrentPeriodEnd
	sameInstant := base.Clone()
	local := end.In(time.FixedZone("KST", 9*3600))
	sameInstant.CurrentPeriodEnd = &local
	require.True(t, sameState(base, sameInstant))

	canceled := base.Clone()
	canceled.CancelAtPeriodEnd = true
	require.False(t, sameState(base, canceled))

	repriced := base.Clone()
	repriced.Price = 2500
	require.False(t, sameState(base, repriced))

	require.False(t, sameState(nil, base))
	require.True(t, sameState(nil, nil))
}
