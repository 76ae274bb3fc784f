// Package webhook admits provider notifications and routes them to the
// subscription and payment handlers.
package webhook

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/inbound"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/signature"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type Result struct {
	EventID   string
	EventType string
	Outcome   Outcome
}

// Service runs verify, decode, admit and route for one delivery.
type Service struct {
	log      *zap.SugaredLogger
	verifier *signature.Verifier
	store    *idempotency.Store
	router   *Router
	retries  *retry.Queue
	audit    audit.Recorder
	events   *inbound.Service
	metrics  *metrics.Business
}

func NewService(verifier *signature.Verifier, store *idempotency.Store, router *Router, retries *retry.Queue, rec audit.Recorder, events *inbound.Service, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{log: log, verifier: verifier, store: store, router: router, retries: retries, audit: rec, events: events, metrics: m}
}

// Handle processes a raw delivery. A nil error means the provider should
// consider the delivery done, including duplicates and ignored kinds.
// Handler failures that may succeed later are enqueued for retry before the
// error is returned.
func (s *Service) Handle(ctx context.Context, header string, body []byte) (*Result, error) {
	lg := logctx.FromCtx(ctx, s.log)

	if err := s.verifier.Verify(header, body); err != nil {
		lg.Warnw("webhook signature rejected", "err", err)
		s.metrics.WebhookEvent("", "unauthenticated")
		return nil, err
	}

	n, err := paddle.DecodeNotification(body)
	if err != nil {
		lg.Warnw("webhook envelope rejected", "err", err)
		s.metrics.WebhookEvent("", "invalid")
		return nil, err
	}
	res := &Result{EventID: n.EventID, EventType: n.EventType}
	lg = lg.With("event_id", n.EventID, "event_type", n.EventType)

	kind, ok := types.ParseEventKind(n.EventType)
	if !ok {
		lg.Infow("ignoring unknown event type")
		res.Outcome = OutcomeIgnored
		s.metrics.WebhookEvent("unknown", string(OutcomeIgnored))
		return res, nil
	}

	ev, err := decodeEvent(kind, n)
	if err != nil {
		lg.Warnw("webhook payload rejected", "err", err)
		s.metrics.WebhookEvent(string(kind), "invalid")
		s.audit.Record(ctx, &models.AuditLogEntry{
			EventKind: string(kind),
			Severity:  types.AuditSeverityWarning,
			EventID:   n.EventID,
			Actor:     types.ActorWebhook,
			Action:    types.AuditActionValidationFailed,
			Metadata:  datatypes.JSONMap{"error": err.Error()},
		})
		return nil, err
	}

	admitted, err := s.store.ClaimEvent(ctx, n.EventID, kind)
	if err != nil {
		lg.Errorw("webhook admission failed", "err", err)
		s.metrics.WebhookEvent(string(kind), "unavailable")
		return nil, err
	}
	if !admitted {
		lg.Infow("duplicate webhook delivery")
		res.Outcome = OutcomeDuplicate
		s.metrics.WebhookEvent(string(kind), string(OutcomeDuplicate))
		return res, nil
	}

	s.events.Received(ctx, &models.InboundEvent{
		EventID:        n.EventID,
		EventKind:      string(kind),
		UserID:         ev.owner(),
		SubscriptionID: ev.subscriptionID(),
		OccurredAt:     n.OccurredAt,
		Data:           datatypes.JSON(n.Data),
	})

	if err := s.router.Route(ctx, ev); err != nil {
		err = s.fail(ctx, ev, err)
		s.events.Finish(ctx, n.EventID, models.InboundEventStatusHandleFailed, map[string]any{
			"error":     err.Error(),
			"retryable": apperr.Retryable(err),
		})
		return nil, err
	}
	s.events.Finish(ctx, n.EventID, models.InboundEventStatusHandled, map[string]any{"outcome": OutcomeProcessed})
	res.Outcome = OutcomeProcessed
	s.metrics.WebhookEvent(string(kind), string(OutcomeProcessed))
	lg.Infow("webhook processed")
	return res, nil
}

// fail enqueues retryable handler errors and returns err unchanged.
func (s *Service) fail(ctx context.Context, ev *Event, err error) error {
	lg := logctx.FromCtx(ctx, s.log).With("event_id", ev.ID(), "event_kind", ev.Kind)
	if !apperr.Retryable(err) {
		lg.Warnw("webhook handler rejected event", "err", err)
		s.metrics.WebhookEvent(string(ev.Kind), "rejected")
		return err
	}
	lg.Errorw("webhook handler failed", "err", err)
	s.metrics.WebhookEvent(string(ev.Kind), "failed")
	if _, qerr := s.retries.Enqueue(ctx, retry.Failure{
		EventID:                ev.ID(),
		Kind:                   ev.Kind,
		UserID:                 ev.owner(),
		ProviderSubscriptionID: ev.subscriptionID(),
		Payload:                ev.Notification.Data,
		Err:                    err,
	}); qerr != nil {
		lg.Errorw("failed to enqueue retry", "err", qerr)
		return errors.Join(err, qerr)
	}
	return err
}

var Module = fx.Options(
	fx.Provide(
		NewRouter,
		NewService,
	),
)
