package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/servicetest"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/worker"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle/paddletest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

func TestRunner_TickReplaysAndPurges(t *testing.T) {
	e := servicetest.New(t)
	e.SeedUser("u_1")
	e.Provider.Put(paddletest.Subscription("sub_1", "u_1", "active", "pri_monthly", "1000", servicetest.Now.AddDate(0, 1, 0)))

	ctx := context.Background()
	_, err := e.Retry.Enqueue(ctx, retry.Failure{
		EventID: "evt_1", Kind: types.EventKindSubscriptionCreated, UserID: "u_1", ProviderSubscriptionID: "sub_1",
	})
	require.NoError(t, err)
	ok, err := e.Store.ClaimEvent(ctx, "evt_old", types.EventKindSubscriptionCreated)
	require.NoError(t, err)
	require.True(t, ok)

	e.Clock.Set(servicetest.Now.Add(e.Cfg.Idempotency.EventRetention + time.Hour))
	// the retry item outlived its ttl first
	require.NoError(t, e.DB.Model(&models.RetryQueueItem{}).Where("event_id = ?", "evt_1").
		Update("expires_at", e.Clock.Now().Add(time.Hour)).Error)

	r := worker.NewRunner(e.Cfg, e.Retry, e.Store, e.Log)
	r.Tick(ctx)

	var item models.RetryQueueItem
	require.NoError(t, e.DB.First(&item, "event_id = ?", "evt_1").Error)
	require.Equal(t, types.RetryStatusResolved, item.Status)
	require.True(t, e.User("u_1").Premium.Active)
	require.Zero(t, e.Count(&models.ProcessedEvent{}))
}

func TestRunner_StartStop(t *testing.T) {
	e := servicetest.New(t)
	cfg := *e.Cfg
	cfg.Retry.PollInterval = 10 * time.Millisecond
	r := worker.NewRunner(&cfg, e.Retry, e.Store, e.Log)

	r.Start()
	time.Sleep(30 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
}
