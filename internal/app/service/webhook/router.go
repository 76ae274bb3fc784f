package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/subscription"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

type Handler func(ctx context.Context, ev *Event) error

// Router dispatches admitted events to their handler.
type Router struct {
	subs  *subscription.Service
	audit audit.Recorder
	log   *zap.SugaredLogger
}

func NewRouter(subs *subscription.Service, rec audit.Recorder, log *zap.SugaredLogger) *Router {
	return &Router{subs: subs, audit: rec, log: log}
}

// Resolve returns the handler for kind. Unknown kinds have none.
func (r *Router) Resolve(kind types.EventKind) (Handler, bool) {
	switch kind {
	case types.EventKindSubscriptionCreated,
		types.EventKindSubscriptionUpdated,
		types.EventKindSubscriptionCanceled,
		types.EventKindSubscriptionPastDue,
		types.EventKindSubscriptionPaused,
		types.EventKindSubscriptionResumed:
		return r.handleSubscription, true
	case types.EventKindTransactionCompleted:
		return r.handleTransactionCompleted, true
	case types.EventKindTransactionPaymentFailed:
		return r.handlePaymentFailed, true
	case types.EventKindTransactionRefunded:
		return r.handleRefunded, true
	default:
		return nil, false
	}
}

func (r *Router) Route(ctx context.Context, ev *Event) error {
	h, ok := r.Resolve(ev.Kind)
	if !ok {
		logctx.FromCtx(ctx, r.log).Infow("no handler for event", "event_id", ev.ID(), "event_kind", ev.Kind)
		return nil
	}
	return h(ctx, ev)
}

func (r *Router) handleSubscription(ctx context.Context, ev *Event) error {
	_, err := r.subs.Apply(ctx, subscription.ApplyInput{
		Kind:     ev.Kind,
		EventID:  ev.ID(),
		Actor:    types.ActorWebhook,
		Payload:  ev.Subscription,
		Metadata: map[string]any{"occurred_at": ev.Notification.OccurredAt},
	})
	return err
}

func transactionMeta(txn *paddle.Transaction) datatypes.JSONMap {
	currency := txn.Details.Totals.CurrencyCode
	if currency == "" {
		currency = txn.CurrencyCode
	}
	return datatypes.JSONMap{
		"status":   txn.Status,
		"total":    txn.Details.Totals.Total,
		"currency": currency,
	}
}

// handleTransactionCompleted resyncs the linked subscription from the
// provider and records whether the payment is backed by premium access.
func (r *Router) handleTransactionCompleted(ctx context.Context, ev *Event) error {
	txn := ev.Transaction
	lg := logctx.FromCtx(ctx, r.log).With("event_id", ev.ID(), "transaction_id", txn.ID)
	meta := transactionMeta(txn)
	entry := &models.AuditLogEntry{
		EventKind:      string(ev.Kind),
		Severity:       types.AuditSeverityInfo,
		UserID:         txn.CustomData.UserID(),
		SubscriptionID: txn.SubscriptionID,
		TransactionID:  txn.ID,
		EventID:        ev.ID(),
		Actor:          types.ActorWebhook,
		Action:         types.AuditActionPaymentSucceeded,
		Metadata:       meta,
	}
	if txn.SubscriptionID == "" {
		r.audit.Record(ctx, entry)
		return nil
	}

	out, err := r.subs.Resync(ctx, subscription.ResyncInput{
		ProviderSubscriptionID: txn.SubscriptionID,
		ClaimedOwner:           txn.CustomData.UserID(),
		EventID:                ev.ID(),
		Actor:                  types.ActorWebhook,
		Metadata:               map[string]any{"transaction_id": txn.ID},
	})
	outcome := types.VerificationSuccess
	switch {
	case err == nil && out.Premium:
		entry.UserID = out.After.UserID
	case err == nil:
		outcome = types.VerificationFailed
		entry.UserID = out.After.UserID
		entry.Severity = types.AuditSeverityCritical
		meta["subscription_status"] = out.After.Status
	case errors.Is(err, paddle.ErrNotFound):
		outcome = types.VerificationFailed
		entry.Severity = types.AuditSeverityCritical
		err = nil
	case errors.Is(err, apperr.ErrOwnershipViolation):
		outcome = types.VerificationFailed
		entry.Severity = types.AuditSeverityCritical
	default:
		outcome = types.VerificationError
		entry.Severity = types.AuditSeverityError
	}
	meta["verification"] = outcome
	if outcome != types.VerificationSuccess {
		lg.Errorw("payment verification did not succeed", "outcome", outcome, "subscription_id", txn.SubscriptionID, "err", err)
	}
	r.audit.Record(ctx, entry)
	return err
}

func (r *Router) handlePaymentFailed(ctx context.Context, ev *Event) error {
	txn := ev.Transaction
	logctx.FromCtx(ctx, r.log).Warnw("payment failed", "event_id", ev.ID(), "transaction_id", txn.ID, "subscription_id", txn.SubscriptionID)
	r.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(ev.Kind),
		Severity:       types.AuditSeverityWarning,
		UserID:         txn.CustomData.UserID(),
		SubscriptionID: txn.SubscriptionID,
		TransactionID:  txn.ID,
		EventID:        ev.ID(),
		Actor:          types.ActorWebhook,
		Action:         types.AuditActionPaymentFailed,
		Metadata:       transactionMeta(txn),
	})
	return nil
}

// handleRefunded records the refund; the subscription, if any, is resynced
// since the provider may have revoked it.
func (r *Router) handleRefunded(ctx context.Context, ev *Event) error {
	txn := ev.Transaction
	r.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(ev.Kind),
		Severity:       types.AuditSeverityWarning,
		UserID:         txn.CustomData.UserID(),
		SubscriptionID: txn.SubscriptionID,
		TransactionID:  txn.ID,
		EventID:        ev.ID(),
		Actor:          types.ActorWebhook,
		Action:         types.AuditActionPaymentRefunded,
		Metadata:       transactionMeta(txn),
	})
	if txn.SubscriptionID == "" {
		return nil
	}
	_, err := r.subs.Resync(ctx, subscription.ResyncInput{
		ProviderSubscriptionID: txn.SubscriptionID,
		ClaimedOwner:           txn.CustomData.UserID(),
		EventID:                ev.ID(),
		Actor:                  types.ActorWebhook,
		Metadata:               map[string]any{"transaction_id": txn.ID, "refund": true},
	})
	if errors.Is(err, paddle.ErrNotFound) {
		logctx.FromCtx(ctx, r.log).Warnw("refunded subscription not found at provider", "event_id", ev.ID(), "subscription_id", txn.SubscriptionID)
		return nil
	}
	return err
}
