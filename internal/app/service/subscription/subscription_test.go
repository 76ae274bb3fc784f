package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/servicetest"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/subscription"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle/paddletest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

func payload(status, priceID, amount string) *paddle.Subscription {
	return paddletest.Subscription("sub_1", "u_1", status, priceID, amount, servicetest.Now.AddDate(0, 1, 0))
}

func apply(t *testing.T, e *servicetest.Env, kind types.EventKind, eventID string, p *paddle.Subscription) (*subscription.Outcome, error) {
	t.Helper()
	return e.Subscriptions.Apply(context.Background(), subscription.ApplyInput{
		Kind: kind, EventID: eventID, Actor: types.ActorWebhook, Payload: p,
	})
}

func TestApply_LifecycleKeepsFlagConsistent(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")

	steps := []struct {
		kind    types.EventKind
		status  string
		price   string
		amount  string
		premium bool
	}{
		{types.EventKindSubscriptionCreated, "active", "pri_basic", "500", true},
		{types.EventKindSubscriptionUpdated, "active", "pri_pro", "1500", true},
		{types.EventKindSubscriptionCanceled, "canceled", "pri_pro", "1500", false},
		{types.EventKindSubscriptionResumed, "active", "pri_pro", "1500", true},
		{types.EventKindSubscriptionPastDue, "past_due", "pri_pro", "1500", false},
		{types.EventKindSubscriptionUpdated, "trialing", "pri_pro", "1500", true},
		{types.EventKindSubscriptionPaused, "paused", "pri_pro", "1500", false},
	}
	for i, st := range steps {
		out, err := apply(t, e, st.kind, "evt_"+string(rune('a'+i)), payload(st.status, st.price, st.amount))
		require.NoError(t, err, st.kind)
		require.Equal(t, st.premium, out.Premium, st.kind)

		stored := e.Subscription("sub_1")
		require.Equal(t, stored.IsPremium(), e.User("u_1").Premium.Active, st.kind)
	}

	var transitions int64
	require.NoError(t, e.DB.Model(&models.AuditLogEntry{}).
		Where("action IN ?", []types.AuditAction{
			types.AuditActionSubscriptionCreated, types.AuditActionSubscriptionUpdated,
			types.AuditActionSubscriptionCanceled, types.AuditActionSubscriptionResumed,
			types.AuditActionSubscriptionPastDue, types.AuditActionSubscriptionPaused,
		}).Count(&transitions).Error)
	require.Equal(t, int64(len(steps)), transitions)

	changes := e.AuditEntries(types.AuditActionPlanChanged)
	require.Len(t, changes, 1)
	require.Equal(t, string(types.PlanChangeUpgrade), changes[0].Metadata["direction"])
	require.Equal(t, int64(1), e.Count(&models.PlanChangeRecord{}))
}

func TestApply_OutOfOrderLastWriteWins(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")

	_, err := apply(t, e, types.EventKindSubscriptionCanceled, "evt_2", payload("canceled", "pri_pro", "1500"))
	require.NoError(t, err)
	_, err = apply(t, e, types.EventKindSubscriptionUpdated, "evt_1", payload("active", "pri_pro", "1500"))
	require.NoError(t, err)

	require.Equal(t, types.SubscriptionStatusActive, e.Subscription("sub_1").Status)
	require.True(t, e.User("u_1").Premium.Active)
}

func TestApply_UnknownOwnerIsRejected(t *testing.T) {
	e := servicetest.New(t)

	_, err := apply(t, e, types.EventKindSubscriptionCreated, "evt_1", payload("active", "pri_pro", "1500"))
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)
	require.Zero(t, e.Count(&models.Subscription{}))

	violations := e.AuditEntries(types.AuditActionOwnershipViolation)
	require.Len(t, violations, 1)
	require.Equal(t, types.AuditSeverityCritical, violations[0].Severity)
}

func TestApply_MissingOwnerIsRejected(t *testing.T) {
	e := servicetest.New(t)
	p := payload("active", "pri_pro", "1500")
	p.CustomData = nil

	_, err := apply(t, e, types.EventKindSubscriptionCreated, "evt_1", p)
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)
}

func TestApply_SpoofedOwnerCannotTakeOver(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")
	e.SeedUser("attacker")

	_, err := apply(t, e, types.EventKindSubscriptionCreated, "evt_1", payload("active", "pri_pro", "1500"))
	require.NoError(t, err)

	spoofed := payload("canceled", "pri_pro", "1500")
	spoofed.CustomData = paddle.CustomData{"userId": "attacker"}
	_, err = apply(t, e, types.EventKindSubscriptionCanceled, "evt_2", spoofed)
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)

	require.Equal(t, types.SubscriptionStatusActive, e.Subscription("sub_1").Status)
	require.True(t, e.User("u_1").Premium.Active)
	require.False(t, e.User("attacker").Premium.Active)
}

func TestApply_StoredOwnerUsedWhenMetadataMissing(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")

	_, err := apply(t, e, types.EventKindSubscriptionCreated, "evt_1", payload("active", "pri_pro", "1500"))
	require.NoError(t, err)

	p := payload("past_due", "pri_pro", "1500")
	p.CustomData = nil
	out, err := apply(t, e, types.EventKindSubscriptionPastDue, "evt_2", p)
	require.NoError(t, err)
	require.Equal(t, "u_1", out.After.UserID)
	require.False(t, e.User("u_1").Premium.Active)
}

func TestResync_PullsFromProvider(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")
	e.Provider.Put(payload("active", "pri_pro", "1500"))

	out, err := e.Subscriptions.Resync(context.Background(), subscription.ResyncInput{
		ProviderSubscriptionID: "sub_1", EventID: "evt_txn", Actor: types.ActorWebhook,
	})
	require.NoError(t, err)
	require.True(t, out.Premium)
	require.Equal(t, []string{"sub_1"}, e.Provider.GetCalls)
	require.Len(t, e.AuditEntries(types.AuditActionSubscriptionSynced), 1)

	// unchanged provider state writes no second entry
	_, err = e.Subscriptions.Resync(context.Background(), subscription.ResyncInput{
		ProviderSubscriptionID: "sub_1", EventID: "evt_txn_2", Actor: types.ActorWebhook,
	})
	require.NoError(t, err)
	require.Len(t, e.AuditEntries(types.AuditActionSubscriptionSynced), 1)

	e.Provider.Put(payload("past_due", "pri_pro", "1500"))
	_, err = e.Subscriptions.Resync(context.Background(), subscription.ResyncInput{
		ProviderSubscriptionID: "sub_1", EventID: "evt_txn_3", Actor: types.ActorWebhook,
	})
	require.NoError(t, err)
	synced := e.AuditEntries(types.AuditActionSubscriptionSynced)
	require.Len(t, synced, 2)
	require.Equal(t, "evt_txn_3", synced[1].EventID)

	_, err = e.Subscriptions.Resync(context.Background(), subscription.ResyncInput{ProviderSubscriptionID: "sub_missing"})
	require.True(t, errors.Is(err, paddle.ErrNotFound))
}

func TestResetPremium(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")
	_, err := apply(t, e, types.EventKindSubscriptionCreated, "evt_1", payload("active", "pri_pro", "1500"))
	require.NoError(t, err)

	_, err = e.Subscriptions.ResetPremium(context.Background(), "u_1", types.ActorUser("u_1"))
	require.NoError(t, err)
	require.False(t, e.User("u_1").Premium.Active)
	require.Len(t, e.AuditEntries(types.AuditActionPremiumReset), 1)

	_, err = e.Subscriptions.ResetPremium(context.Background(), "ghost", types.ActorUser("ghost"))
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)
}
