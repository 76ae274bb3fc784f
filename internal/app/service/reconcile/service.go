// Package reconcile pulls authoritative subscription state from the billing
// provider on demand: user and operator syncs, cancellations and retry
// replays.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/subscription"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

var (
	// ErrAlreadyInProgress is returned when the actor's window is taken and
	// no result has been cached yet.
	ErrAlreadyInProgress = errors.New("sync already in progress")
	ErrNoSubscription    = errors.New("no live subscription")
)

type SyncResult struct {
	Success          bool                     `json:"success"`
	SubscriptionID   string                   `json:"subscriptionId,omitempty"`
	Status           types.SubscriptionStatus `json:"status,omitempty"`
	IsPremium        bool                     `json:"isPremium"`
	DaysUntilRenewal *int                     `json:"daysUntilRenewal"`
	NextBillingDate  *time.Time               `json:"nextBillingDate"`
	SyncedAt         time.Time                `json:"syncedAt"`
	Cached           bool                     `json:"cached"`
}

type Service struct {
	log      *zap.SugaredLogger
	store    *idempotency.Store
	subs     *subscription.Service
	provider paddle.Provider
	now      tool.Clock
}

var _ retry.Replayer = (*Service)(nil)

func New(store *idempotency.Store, subs *subscription.Service, provider paddle.Provider, log *zap.SugaredLogger) *Service {
	return &Service{log: log, store: store, subs: subs, provider: provider, now: tool.UTCNow}
}

// WithClock returns a copy of s using now.
func (s *Service) WithClock(now tool.Clock) *Service {
	c := *s
	c.now = now
	return &c
}

// windowKey scopes the sync window. Operators get one window per target so
// a cached result never answers for another user.
func windowKey(actorID, userID string) string {
	if actorID == userID {
		return actorID
	}
	return actorID + ":" + userID
}

// Sync reconciles userID on behalf of actorID, at most once per window.
// A repeated request inside the window gets the cached result.
func (s *Service) Sync(ctx context.Context, actorID, userID string) (*SyncResult, error) {
	lg := logctx.FromCtx(ctx, s.log).With("actor_id", actorID, "user_id", userID)

	claim, err := s.store.ClaimWindow(ctx, windowKey(actorID, userID))
	if err != nil {
		return nil, err
	}
	if !claim.Admitted {
		if len(claim.CachedResult) == 0 || string(claim.CachedResult) == "null" {
			return nil, ErrAlreadyInProgress
		}
		var cached SyncResult
		if err := json.Unmarshal(claim.CachedResult, &cached); err != nil {
			lg.Warnw("failed to decode cached sync result", "err", err)
			return nil, ErrAlreadyInProgress
		}
		cached.Cached = true
		return &cached, nil
	}

	res, err := s.sync(ctx, types.ActorUser(actorID), userID)
	if err != nil {
		if rerr := s.store.ReleaseWindow(ctx, claim); rerr != nil {
			lg.Warnw("failed to release sync window", "err", rerr)
		}
		return nil, err
	}
	if err := s.store.SaveWindowResult(ctx, claim, res); err != nil {
		lg.Warnw("failed to cache sync result", "err", err)
	}
	lg.Infow("reconciled", "subscription_id", res.SubscriptionID, "premium", res.IsPremium)
	return res, nil
}

func (s *Service) sync(ctx context.Context, actor, userID string) (*SyncResult, error) {
	latest, err := s.subs.LatestForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		if _, err := s.subs.ResetPremium(ctx, userID, actor); err != nil {
			return nil, err
		}
		return &SyncResult{Success: true, SyncedAt: s.now()}, nil
	}

	out, err := s.subs.Resync(ctx, subscription.ResyncInput{
		ProviderSubscriptionID: latest.ProviderSubscriptionID,
		ClaimedOwner:           userID,
		Actor:                  actor,
		Metadata:               map[string]any{"source": "reconcile"},
	})
	if err != nil {
		return nil, err
	}
	return s.result(out.After), nil
}

// Cancel schedules cancellation of the user's live subscription at the end
// of the billing period and applies the provider's answer.
func (s *Service) Cancel(ctx context.Context, userID string) (*SyncResult, error) {
	latest, err := s.subs.LatestForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil || !latest.Status.Live() {
		return nil, ErrNoSubscription
	}
	remote, err := s.provider.CancelSubscription(ctx, latest.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription %s: %w", latest.ProviderSubscriptionID, err)
	}
	out, err := s.subs.Apply(ctx, subscription.ApplyInput{
		Kind:         types.EventKindUnknown,
		Actor:        types.ActorUser(userID),
		Payload:      remote,
		ClaimedOwner: userID,
		Metadata:     map[string]any{"source": "cancel"},
	})
	if err != nil {
		return nil, err
	}
	return s.result(out.After), nil
}

// Replay implements retry.Replayer by resyncing the referenced subscription.
func (s *Service) Replay(ctx context.Context, item *models.RetryQueueItem) error {
	if item.ProviderSubscriptionID == "" {
		return retry.ErrNotReplayable
	}
	_, err := s.subs.Resync(ctx, subscription.ResyncInput{
		ProviderSubscriptionID: item.ProviderSubscriptionID,
		ClaimedOwner:           item.UserID,
		EventID:                item.EventID,
		Actor:                  types.ActorRetryWorker,
		Metadata:               map[string]any{"retry_id": item.ID, "attempt": item.RetryCount},
	})
	if errors.Is(err, paddle.ErrNotFound) {
		return fmt.Errorf("%w: %w", retry.ErrNotReplayable, err)
	}
	return err
}

func (s *Service) result(sub *models.Subscription) *SyncResult {
	now := s.now()
	return &SyncResult{
		Success:          true,
		SubscriptionID:   sub.ProviderSubscriptionID,
		Status:           sub.Status,
		IsPremium:        sub.IsPremium(),
		DaysUntilRenewal: DaysUntil(sub.RenewalDate(), now),
		NextBillingDate:  sub.NextBillingDate,
		SyncedAt:         now,
	}
}

// DaysUntil rounds the time to t up to whole days, never below zero.
func DaysUntil(t *time.Time, now time.Time) *int {
	if t == nil {
		return nil
	}
	d := int(math.Ceil(t.Sub(now).Hours() / 24))
	if d < 0 {
		d = 0
	}
	return &d
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) retry.Replayer { return s },
	),
)
