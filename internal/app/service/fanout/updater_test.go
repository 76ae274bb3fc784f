package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/db/dbtest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

var now = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newUpdater(t *testing.T, batchSize int) (*Updater, *gorm.DB) {
	gdb := dbtest.New(t)
	u := NewUpdater(gdb, Options{BatchSize: batchSize, LookaheadDays: 90, Now: tool.FixedClock(now)}, zap.NewNop().Sugar())
	return u, gdb
}

func sub(userID, providerID string, status types.SubscriptionStatus) *models.Subscription {
	end := now.AddDate(0, 1, 0)
	return &models.Subscription{
		UserID:                 userID,
		ProviderSubscriptionID: providerID,
		ProviderCustomerID:     "cus_1",
		Status:                 status,
		PriceID:                "pri_monthly",
		Price:                  1000,
		Currency:               "USD",
		CurrentPeriodEnd:       &end,
		NextBillingDate:        &end,
	}
}

// seedStats creates one stat per day from now+fromDay to now+toDay inclusive.
func seedStats(t *testing.T, gdb *gorm.DB, userID string, fromDay, toDay int, premium bool) {
	t.Helper()
	var rows []*models.DailyUsageStat
	for d := fromDay; d <= toDay; d++ {
		rows = append(rows, &models.DailyUsageStat{
			ID:        tool.GenerateUUIDV7(),
			UserID:    userID,
			Date:      tool.DateString(now.AddDate(0, 0, d)),
			Count:     d + 100,
			IsPremium: premium,
			UpdatedAt: now.AddDate(0, 0, -30),
		})
	}
	require.NoError(t, gdb.CreateInBatches(rows, 100).Error)
}

func statsByDate(t *testing.T, gdb *gorm.DB, userID string) map[string]models.DailyUsageStat {
	var rows []models.DailyUsageStat
	require.NoError(t, gdb.Where("user_id = ?", userID).Find(&rows).Error)
	out := map[string]models.DailyUsageStat{}
	for _, r := range rows {
		out[r.Date] = r
	}
	return out
}

func TestApply_CreatesSubscriptionAndFlag(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")

	res, err := u.Apply(context.Background(), Change{After: sub("u_1", "sub_1", types.SubscriptionStatusActive), Plan: "pro"})
	require.NoError(t, err)
	require.True(t, res.Premium)
	require.NotEmpty(t, res.Subscription.ID)
	require.True(t, res.Fanout.OK())

	user := dbtest.LoadUser(t, gdb, "u_1")
	require.True(t, user.Premium.Active)
	require.Equal(t, "pro", user.Premium.Plan)
	require.NotNil(t, user.Premium.ChangedAt)
}

func TestApply_UpsertKeepsIdentity(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")
	ctx := context.Background()

	first, err := u.Apply(ctx, Change{After: sub("u_1", "sub_1", types.SubscriptionStatusActive)})
	require.NoError(t, err)

	canceled := sub("u_1", "sub_1", types.SubscriptionStatusCanceled)
	canceled.CancelAtPeriodEnd = true
	second, err := u.Apply(ctx, Change{Before: first.Subscription, After: canceled})
	require.NoError(t, err)
	require.Equal(t, first.Subscription.ID, second.Subscription.ID)
	require.Equal(t, types.SubscriptionStatusCanceled, second.Subscription.Status)
	require.True(t, second.Subscription.CancelAtPeriodEnd)
	require.False(t, second.Premium)

	var n int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&n).Error)
	require.Equal(t, int64(1), n)

	user := dbtest.LoadUser(t, gdb, "u_1")
	require.False(t, user.Premium.Active)
	require.Equal(t, types.PlanFree, user.Premium.Plan)
}

func TestApply_UnknownUserRollsBack(t *testing.T) {
	u, gdb := newUpdater(t, 500)

	_, err := u.Apply(context.Background(), Change{After: sub("ghost", "sub_1", types.SubscriptionStatusActive)})
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)

	var n int64
	require.NoError(t, gdb.Model(&models.Subscription{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestApply_OwnerMismatchRollsBack(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")
	dbtest.SeedUser(t, gdb, "u_2")
	ctx := context.Background()

	_, err := u.Apply(ctx, Change{After: sub("u_1", "sub_1", types.SubscriptionStatusActive)})
	require.NoError(t, err)

	_, err = u.Apply(ctx, Change{After: sub("u_2", "sub_1", types.SubscriptionStatusCanceled)})
	require.ErrorIs(t, err, apperr.ErrOwnershipViolation)

	var stored models.Subscription
	require.NoError(t, gdb.First(&stored, "provider_subscription_id = ?", "sub_1").Error)
	require.Equal(t, "u_1", stored.UserID)
	require.Equal(t, types.SubscriptionStatusActive, stored.Status)
	require.False(t, dbtest.LoadUser(t, gdb, "u_2").Premium.Active)
}

func TestApply_PlanChangeRecordedInCoreTransaction(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")

	res, err := u.Apply(context.Background(), Change{
		After: sub("u_1", "sub_1", types.SubscriptionStatusActive),
		PlanChange: &models.PlanChangeRecord{
			FromPriceID: "pri_basic", ToPriceID: "pri_monthly",
			FromPrice: 500, ToPrice: 1000,
			Direction: types.PlanChangeUpgrade,
			EventID:   "evt_1",
		},
	})
	require.NoError(t, err)

	var rec models.PlanChangeRecord
	require.NoError(t, gdb.First(&rec).Error)
	require.Equal(t, res.Subscription.ID, rec.SubscriptionID)
	require.Equal(t, "u_1", rec.UserID)
	require.Equal(t, types.PlanChangeUpgrade, rec.Direction)
}

func TestApply_CancellationLeavesPastStatsUntouched(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")
	seedStats(t, gdb, "u_1", -14, 20, true)
	before := statsByDate(t, gdb, "u_1")

	res, err := u.Apply(context.Background(), Change{After: sub("u_1", "sub_1", types.SubscriptionStatusCanceled)})
	require.NoError(t, err)
	require.Equal(t, 21, res.Fanout.Matched)
	require.Equal(t, 21, res.Fanout.Updated)

	after := statsByDate(t, gdb, "u_1")
	today := tool.DateString(now)
	for date, row := range after {
		if date < today {
			require.Equal(t, before[date], row, "past day %s changed", date)
			continue
		}
		require.False(t, row.IsPremium, date)
		require.Equal(t, before[date].Count, row.Count)
	}
}

func TestSyncDailyStats_RespectsEffectiveFromAndLookahead(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")
	seedStats(t, gdb, "u_1", 0, 120, false)

	rep := u.SyncDailyStats(context.Background(), "u_1", true, now.AddDate(0, 0, 10))
	require.Equal(t, 81, rep.Matched) // days 10..90

	after := statsByDate(t, gdb, "u_1")
	require.False(t, after[tool.DateString(now.AddDate(0, 0, 9))].IsPremium)
	require.True(t, after[tool.DateString(now.AddDate(0, 0, 10))].IsPremium)
	require.True(t, after[tool.DateString(now.AddDate(0, 0, 90))].IsPremium)
	require.False(t, after[tool.DateString(now.AddDate(0, 0, 91))].IsPremium)

	// already consistent rows are not rewritten
	rep = u.SyncDailyStats(context.Background(), "u_1", true, now.AddDate(0, 0, 10))
	require.Zero(t, rep.Matched)
}

func TestSyncDailyStats_BatchFailureContinues(t *testing.T) {
	u, gdb := newUpdater(t, 10)
	dbtest.SeedUser(t, gdb, "u_1")
	seedStats(t, gdb, "u_1", 0, 34, true)

	calls := 0
	require.NoError(t, gdb.Callback().Update().Before("gorm:update").Register("test:fail_second_batch", func(tx *gorm.DB) {
		if tx.Statement.Table != "daily_usage_stat" {
			return
		}
		calls++
		if calls == 2 {
			_ = tx.AddError(errors.New("batch write limit exceeded"))
		}
	}))

	rep := u.SyncDailyStats(context.Background(), "u_1", false, time.Time{})
	require.Equal(t, 35, rep.Matched)
	require.Equal(t, 4, rep.Batches)
	require.Equal(t, 1, rep.FailedBatches)
	require.Equal(t, 25, rep.Updated)
	require.False(t, rep.OK())

	var stale int64
	require.NoError(t, gdb.Model(&models.DailyUsageStat{}).Where("is_premium = ?", true).Count(&stale).Error)
	require.Equal(t, int64(10), stale)
}

func TestApply_SupersedesOtherLiveSubscription(t *testing.T) {
	u, gdb := newUpdater(t, 500)
	dbtest.SeedUser(t, gdb, "u_1")
	ctx := context.Background()

	_, err := u.Apply(ctx, Change{After: sub("u_1", "sub_old", types.SubscriptionStatusPastDue)})
	require.NoError(t, err)

	res, err := u.Apply(ctx, Change{After: sub("u_1", "sub_new", types.SubscriptionStatusActive)})
	require.NoError(t, err)
	require.Len(t, res.Superseded, 1)
	require.Equal(t, "sub_old", res.Superseded[0].ProviderSubscriptionID)
	require.Equal(t, types.SubscriptionStatusPastDue, res.Superseded[0].Status)

	var live int64
	require.NoError(t, gdb.Model(&models.Subscription{}).
		Where("user_id = ? AND status IN ?", "u_1", types.LiveStatuses()).Count(&live).Error)
	require.Equal(t, int64(1), live)
	require.True(t, dbtest.LoadUser(t, gdb, "u_1").Premium.Active)
}
