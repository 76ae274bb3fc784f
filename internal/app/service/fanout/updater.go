// Package fanout applies a subscription state change to the canonical record
// and every denormalized copy of "is this user premium".
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// subscriptionMutableColumns are overwritten on upsert. id, user_id and
// created_at belong to the first write.
var subscriptionMutableColumns = []string{
	"provider_customer_id",
	"status",
	"price_id",
	"price",
	"currency",
	"current_period_end",
	"next_billing_date",
	"cancel_at_period_end",
	"canceled_at",
	"paused_at",
	"updated_at",
}

// Change is the before/after pair computed by a handler.
type Change struct {
	// Before is the stored record, nil for a first sighting.
	Before *models.Subscription
	After  *models.Subscription
	// Plan is written to the premium flag; empty means derive from status.
	Plan string
	// PlanChange is inserted in the same transaction when set.
	PlanChange *models.PlanChangeRecord
	// EffectiveFrom bounds the stat correction; zero means now. Past days
	// are never corrected regardless.
	EffectiveFrom time.Time
}

// Report describes the best-effort part of an apply. Failures here are
// never returned as errors.
type Report struct {
	Matched       int      `json:"matched"`
	Updated       int      `json:"updated"`
	Batches       int      `json:"batches"`
	FailedBatches int      `json:"failed_batches"`
	Errors        []string `json:"errors,omitempty"`
}

func (r Report) OK() bool { return r.FailedBatches == 0 && len(r.Errors) == 0 }

// Result separates the committed core write from the fan-out report.
type Result struct {
	Subscription *models.Subscription
	Premium      bool
	Plan         string
	// Superseded holds the pre-change snapshots of other live subscriptions
	// of the same user that this change canceled locally.
	Superseded []*models.Subscription
	Fanout     Report
}

type Options struct {
	BatchSize     int
	LookaheadDays int
	Metrics       *metrics.Business
	Now           tool.Clock
}

type Updater struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	opts Options
}

func NewUpdater(db *gorm.DB, opts Options, log *zap.SugaredLogger) *Updater {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = 90
	}
	if opts.Now == nil {
		opts.Now = tool.UTCNow
	}
	return &Updater{db: db, log: log, opts: opts}
}

func New(db *gorm.DB, cfg *config.Config, m *metrics.Business, log *zap.SugaredLogger) *Updater {
	return NewUpdater(db, Options{
		BatchSize:     cfg.Fanout.BatchSize,
		LookaheadDays: cfg.Fanout.LookaheadDays,
		Metrics:       m,
	}, log)
}

func planFor(premium bool, plan string) string {
	if !premium {
		return types.PlanFree
	}
	if plan == "" || plan == types.PlanFree {
		return types.PlanPremium
	}
	return plan
}

// Apply commits the subscription, the owner's premium flag and the optional
// plan change atomically, then corrects current and future daily stats.
func (u *Updater) Apply(ctx context.Context, ch Change) (*Result, error) {
	after := ch.After
	if after == nil || after.UserID == "" || after.ProviderSubscriptionID == "" {
		return nil, errors.New("fanout: change requires a subscription with owner and provider id")
	}
	now := u.opts.Now()
	premium := after.IsPremium()
	plan := planFor(premium, ch.Plan)

	var stored models.Subscription
	var superseded []*models.Subscription
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := after.Clone()
		if row.ID == "" {
			row.ID = tool.GenerateUUIDV7()
		}
		row.UpdatedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_subscription_id"}},
			DoUpdates: clause.AssignmentColumns(subscriptionMutableColumns),
		}).Create(row).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}
		if err := tx.Where("provider_subscription_id = ?", after.ProviderSubscriptionID).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload subscription: %w", err)
		}
		if stored.UserID != after.UserID {
			return apperr.Ownership("subscription %s belongs to another user", after.ProviderSubscriptionID)
		}

		if stored.Status.Live() {
			var err error
			if superseded, err = supersedeOthers(tx, &stored, now); err != nil {
				return err
			}
		}

		if err := setPremium(tx, after.UserID, premium, plan, now); err != nil {
			return err
		}

		if pc := ch.PlanChange; pc != nil {
			rec := *pc
			if rec.ID == "" {
				rec.ID = tool.GenerateUUIDV7()
			}
			rec.UserID = stored.UserID
			rec.SubscriptionID = stored.ID
			rec.CreatedAt = now
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("failed to insert plan change: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOwnershipViolation) {
			return nil, err
		}
		return nil, apperr.Transient(fmt.Errorf("failed to apply subscription change: %w", err))
	}

	report := u.SyncDailyStats(ctx, stored.UserID, premium, ch.EffectiveFrom)
	return &Result{Subscription: &stored, Premium: premium, Plan: plan, Superseded: superseded, Fanout: report}, nil
}

// supersedeOthers keeps a single live subscription per user: any other live
// record of the owner is canceled in the same transaction.
func supersedeOthers(tx *gorm.DB, keep *models.Subscription, now time.Time) ([]*models.Subscription, error) {
	var others []*models.Subscription
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND id <> ? AND status IN ?", keep.UserID, keep.ID, types.LiveStatuses()).
		Find(&others).Error; err != nil {
		return nil, fmt.Errorf("failed to load live subscriptions: %w", err)
	}
	if len(others) == 0 {
		return nil, nil
	}
	ids := lo.Map(others, func(s *models.Subscription, _ int) string { return s.ID })
	if err := tx.Model(&models.Subscription{}).Where("id IN ?", ids).Updates(map[string]any{
		"status":               types.SubscriptionStatusCanceled,
		"cancel_at_period_end": true,
		"canceled_at":          now,
		"next_billing_date":    nil,
		"updated_at":           now,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to supersede subscriptions: %w", err)
	}
	return others, nil
}

// ResetPremium clears the flag of a user with no subscription left at the
// provider and corrects stats.
func (u *Updater) ResetPremium(ctx context.Context, userID string) (*Result, error) {
	now := u.opts.Now()
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setPremium(tx, userID, false, types.PlanFree, now)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOwnershipViolation) {
			return nil, err
		}
		return nil, apperr.Transient(fmt.Errorf("failed to reset premium flag: %w", err))
	}
	return &Result{Plan: types.PlanFree, Fanout: u.SyncDailyStats(ctx, userID, false, time.Time{})}, nil
}

func setPremium(tx *gorm.DB, userID string, premium bool, plan string, now time.Time) error {
	res := tx.Model(&models.UserProfile{}).Where("id = ?", userID).Updates(map[string]any{
		models.ColumnPremiumActive:    premium,
		models.ColumnPremiumPlan:      plan,
		models.ColumnPremiumUpdatedAt: now,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update premium flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Ownership("user %s not found", userID)
	}
	return nil
}

// SyncDailyStats rewrites is_premium on stats dated from max(today, from) up
// to the lookahead horizon, in sequential batches. A failed batch is logged
// and skipped.
func (u *Updater) SyncDailyStats(ctx context.Context, userID string, premium bool, from time.Time) Report {
	var report Report
	lg := logctx.FromCtx(ctx, u.log).With("user_id", userID)
	now := u.opts.Now()

	start := tool.DateString(now)
	if !from.IsZero() {
		if f := tool.DateString(from); f > start {
			start = f
		}
	}
	end := tool.DateString(now.AddDate(0, 0, u.opts.LookaheadDays))
	if start > end {
		return report
	}

	var ids []string
	if err := u.db.WithContext(ctx).Model(&models.DailyUsageStat{}).
		Where("user_id = ? AND date >= ? AND date <= ? AND is_premium <> ?", userID, start, end, premium).
		Order("date").
		Pluck("id", &ids).Error; err != nil {
		lg.Errorw("failed to select daily stats for fan-out", "err", err)
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Matched = len(ids)

	for i, batch := range lo.Chunk(ids, u.opts.BatchSize) {
		report.Batches++
		err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Model(&models.DailyUsageStat{}).
				Where("id IN ?", batch).
				Updates(map[string]any{"is_premium": premium, "updated_at": now}).Error
		})
		if err != nil {
			report.FailedBatches++
			report.Errors = append(report.Errors, err.Error())
			lg.Warnw("daily stat batch failed", "batch", i, "size", len(batch), "err", err)
			continue
		}
		report.Updated += len(batch)
	}
	u.opts.Metrics.FanoutBatchFailed(report.FailedBatches)
	return report
}

var Module = fx.Options(
	fx.Provide(New),
)
