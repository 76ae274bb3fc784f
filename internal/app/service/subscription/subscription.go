// Package subscription owns the canonical Subscription record: it resolves
// the owner of a provider payload, computes the new state and hands the
// before/after pair to the fan-out updater.
package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/fanout"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/userdir"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"

	"go.uber.org/zap"
)

type Service struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.SugaredLogger
	dir      userdir.Directory
	updater  *fanout.Updater
	audit    audit.Recorder
	provider paddle.Provider
	now      tool.Clock
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, dir userdir.Directory, updater *fanout.Updater, rec audit.Recorder, provider paddle.Provider) *Service {
	return &Service{cfg: cfg, db: db, log: log, dir: dir, updater: updater, audit: rec, provider: provider, now: tool.UTCNow}
}

// WithClock returns a copy of s using now.
func (s *Service) WithClock(now tool.Clock) *Service {
	c := *s
	c.now = now
	return &c
}

// Find returns the stored record for a provider subscription id, or nil.
func (s *Service) Find(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	res := s.db.WithContext(ctx).Where("provider_subscription_id = ?", providerSubscriptionID).Limit(1).Find(&sub)
	if res.Error != nil {
		return nil, apperr.Transient(fmt.Errorf("failed to load subscription: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &sub, nil
}

// LatestForUser returns the user's live subscription, falling back to the
// most recently updated one, or nil. Ties go to the newest id.
func (s *Service) LatestForUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN status IN ? THEN 0 ELSE 1 END, updated_at DESC, id DESC",
			Vars:               []any{types.LiveStatuses()},
			WithoutParentheses: true,
		}}).
		Limit(1).Find(&sub)
	if res.Error != nil {
		return nil, apperr.Transient(fmt.Errorf("failed to load user subscription: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &sub, nil
}

// ResolveOwner decides which user a payload may mutate. The stored owner
// wins; a claimed owner that disagrees with it, or an owner that does not
// exist, is an ownership violation.
func (s *Service) ResolveOwner(ctx context.Context, claimed string, existing *models.Subscription) (string, error) {
	owner := claimed
	if existing != nil {
		if claimed != "" && claimed != existing.UserID {
			return "", apperr.Ownership("claimed owner %s does not own subscription %s", claimed, existing.ProviderSubscriptionID)
		}
		owner = existing.UserID
	}
	if owner == "" {
		return "", apperr.Ownership("payload carries no owner")
	}
	ok, err := s.dir.Exists(ctx, owner)
	if err != nil {
		return "", apperr.Transient(err)
	}
	if !ok {
		return "", apperr.Ownership("user %s does not exist", owner)
	}
	return owner, nil
}

// ApplyInput describes one state change from a push or a pull.
type ApplyInput struct {
	// Kind is the triggering event kind; EventKindUnknown marks a provider pull.
	Kind    types.EventKind
	EventID string
	Actor   string
	Payload *paddle.Subscription
	// ClaimedOwner overrides the owner in the payload metadata when set.
	ClaimedOwner string
	// Metadata is merged into the transition's audit entry.
	Metadata map[string]any
}

type Outcome struct {
	Before     *models.Subscription
	After      *models.Subscription
	Premium    bool
	Plan       string
	PlanChange *models.PlanChangeRecord
	Fanout     fanout.Report
}

// Apply resolves the owner, computes the new state and commits it with its
// derived records. Exactly one transition audit entry is written on success,
// except for provider pulls that change nothing.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (*Outcome, error) {
	lg := logctx.FromCtx(ctx, s.log).With("event_id", in.EventID, "subscription_id", in.Payload.ID)

	existing, err := s.Find(ctx, in.Payload.ID)
	if err != nil {
		return nil, err
	}
	claimed := in.ClaimedOwner
	if claimed == "" {
		claimed = in.Payload.CustomData.UserID()
	}
	owner, err := s.ResolveOwner(ctx, claimed, existing)
	if err != nil {
		if errors.Is(err, apperr.ErrOwnershipViolation) {
			s.recordOwnershipViolation(ctx, in, claimed, existing, err)
		}
		return nil, err
	}

	now := s.now()
	after := BuildState(in.Kind, in.Payload, existing, owner, now)
	var pc *models.PlanChangeRecord
	if in.Kind == types.EventKindSubscriptionUpdated || in.Kind == types.EventKindUnknown {
		pc = planChange(existing, after, in.EventID)
	}

	res, err := s.updater.Apply(ctx, fanout.Change{
		Before:     existing,
		After:      after,
		Plan:       s.cfg.PlanForPrice(after.PriceID),
		PlanChange: pc,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOwnershipViolation) {
			s.recordOwnershipViolation(ctx, in, claimed, existing, err)
		}
		return nil, err
	}

	out := &Outcome{
		Before:     existing,
		After:      res.Subscription,
		Premium:    res.Premium,
		Plan:       res.Plan,
		PlanChange: pc,
		Fanout:     res.Fanout,
	}
	lg.Infow("subscription applied", "user_id", owner, "status", out.After.Status, "premium", out.Premium)
	s.recordTransition(ctx, in, out)
	for _, prev := range res.Superseded {
		s.recordSuperseded(ctx, in, prev, out.After)
	}
	return out, nil
}

// ResyncInput identifies a subscription to pull from the provider.
type ResyncInput struct {
	ProviderSubscriptionID string
	ClaimedOwner           string
	EventID                string
	Actor                  string
	Metadata               map[string]any
}

// Resync pulls authoritative state from the provider and applies it.
// Provider errors are wrapped; callers match paddle.ErrNotFound with errors.Is.
func (s *Service) Resync(ctx context.Context, in ResyncInput) (*Outcome, error) {
	remote, err := s.provider.GetSubscription(ctx, in.ProviderSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", in.ProviderSubscriptionID, err)
	}
	return s.Apply(ctx, ApplyInput{
		Kind:         types.EventKindUnknown,
		EventID:      in.EventID,
		Actor:        in.Actor,
		Payload:      remote,
		ClaimedOwner: in.ClaimedOwner,
		Metadata:     in.Metadata,
	})
}

// ResetPremium clears the flag of a user without any subscription.
func (s *Service) ResetPremium(ctx context.Context, userID, actor string) (*fanout.Result, error) {
	res, err := s.updater.ResetPremium(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, &models.AuditLogEntry{
		Severity: types.AuditSeverityInfo,
		UserID:   userID,
		Actor:    actor,
		Action:   types.AuditActionPremiumReset,
		Metadata: datatypes.JSONMap{"fanout": res.Fanout},
	})
	return res, nil
}

func (s *Service) recordTransition(ctx context.Context, in ApplyInput, out *Outcome) {
	if in.Kind == types.EventKindUnknown && out.Fanout.OK() && sameState(out.Before, out.After) {
		logctx.FromCtx(ctx, s.log).Debugw("pull changed nothing, audit skipped", "subscription_id", out.After.ProviderSubscriptionID)
		return
	}
	meta := datatypes.JSONMap{
		"premium": out.Premium,
		"plan":    out.Plan,
	}
	for k, v := range in.Metadata {
		meta[k] = v
	}
	severity := types.AuditSeverityInfo
	if !out.Fanout.OK() {
		severity = types.AuditSeverityWarning
		meta["fanout"] = out.Fanout
	}
	s.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(in.Kind),
		Severity:       severity,
		UserID:         out.After.UserID,
		SubscriptionID: out.After.ProviderSubscriptionID,
		EventID:        in.EventID,
		Actor:          in.Actor,
		Action:         actionFor(in.Kind),
		Before:         audit.Snapshot(out.Before),
		After:          audit.Snapshot(out.After),
		Metadata:       meta,
	})
	if pc := out.PlanChange; pc != nil {
		s.audit.Record(ctx, &models.AuditLogEntry{
			EventKind:      string(in.Kind),
			Severity:       types.AuditSeverityInfo,
			UserID:         out.After.UserID,
			SubscriptionID: out.After.ProviderSubscriptionID,
			EventID:        in.EventID,
			Actor:          in.Actor,
			Action:         types.AuditActionPlanChanged,
			Metadata: datatypes.JSONMap{
				"from_price_id": pc.FromPriceID,
				"to_price_id":   pc.ToPriceID,
				"from_price":    pc.FromPrice,
				"to_price":      pc.ToPrice,
				"direction":     pc.Direction,
			},
		})
	}
}

func (s *Service) recordSuperseded(ctx context.Context, in ApplyInput, prev, by *models.Subscription) {
	after := prev.Clone()
	after.Status = types.SubscriptionStatusCanceled
	after.CancelAtPeriodEnd = true
	s.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(in.Kind),
		Severity:       types.AuditSeverityWarning,
		UserID:         prev.UserID,
		SubscriptionID: prev.ProviderSubscriptionID,
		EventID:        in.EventID,
		Actor:          in.Actor,
		Action:         types.AuditActionSubscriptionCanceled,
		Before:         audit.Snapshot(prev),
		After:          audit.Snapshot(after),
		Metadata:       datatypes.JSONMap{"superseded_by": by.ProviderSubscriptionID},
	})
}

func (s *Service) recordOwnershipViolation(ctx context.Context, in ApplyInput, claimed string, existing *models.Subscription, cause error) {
	meta := datatypes.JSONMap{"claimed_user_id": claimed, "reason": cause.Error()}
	if existing != nil {
		meta["stored_user_id"] = existing.UserID
	}
	logctx.FromCtx(ctx, s.log).Errorw("ownership violation", "event_id", in.EventID, "subscription_id", in.Payload.ID, "claimed_user_id", claimed, "err", cause)
	s.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(in.Kind),
		Severity:       types.AuditSeverityCritical,
		UserID:         claimed,
		SubscriptionID: in.Payload.ID,
		EventID:        in.EventID,
		Actor:          in.Actor,
		Action:         types.AuditActionOwnershipViolation,
		Metadata:       meta,
	})
}
