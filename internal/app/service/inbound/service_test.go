package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/datatypes"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/db/dbtest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
)

func TestReceivedThenFinish(t *testing.T) {
	gdb := dbtest.New(t)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	svc := NewWithClock(gdb, zap.NewNop().Sugar(), tool.FixedClock(now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Received(ctx, &models.InboundEvent{
		EventID:        "evt_1",
		EventKind:      "subscription.created",
		SubscriptionID: "sub_1",
		OccurredAt:     now,
		Data:           datatypes.JSON(`{"id":"sub_1"}`),
	})

	ev, err := svc.Get(context.Background(), "evt_1")
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, models.InboundEventStatusReceived, ev.Status)
	require.Nil(t, ev.Result)

	// a second receipt keeps the original payload
	svc.Received(context.Background(), &models.InboundEvent{EventID: "evt_1", EventKind: "subscription.created", Data: datatypes.JSON(`{"id":"other"}`)})
	svc.Finish(ctx, "evt_1", models.InboundEventStatusHandled, map[string]any{"outcome": "processed"})

	ev, err = svc.Get(context.Background(), "evt_1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"sub_1"}`, string(ev.Data))
	require.Equal(t, models.InboundEventStatusHandled, ev.Status)
	require.NotNil(t, ev.Result)
	require.JSONEq(t, `{"outcome":"processed"}`, string(*ev.Result))

	var n int64
	require.NoError(t, gdb.Model(&models.InboundEvent{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestGet_Missing(t *testing.T) {
	svc := New(dbtest.New(t), zap.NewNop().Sugar())
	ev, err := svc.Get(context.Background(), "evt_none")
	require.NoError(t, err)
	require.Nil(t, ev)
}

func TestReceived_StoreFailureIsLogged(t *testing.T) {
	gdb := dbtest.New(t)
	core, logs := observer.New(zap.ErrorLevel)
	svc := New(gdb, zap.New(core).Sugar())
	require.NoError(t, gdb.Migrator().DropTable(&models.InboundEvent{}))

	require.NotPanics(t, func() {
		svc.Received(context.Background(), &models.InboundEvent{EventID: "evt_1", EventKind: "subscription.created"})
		svc.Received(context.Background(), nil)
		svc.Finish(context.Background(), "evt_1", models.InboundEventStatusHandled, nil)
	})
	require.Equal(t, 1, logs.FilterMessageSnippet("failed to save inbound event").Len())
	require.Equal(t, 1, logs.FilterMessageSnippet("failed to update inbound event").Len())
}
