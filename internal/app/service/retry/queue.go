// Package retry persists handler failures and replays them on a schedule
// until they resolve or expire.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/apperr"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// ErrNotReplayable marks items that carry nothing to resync from. They are
// expired on first attempt.
var ErrNotReplayable = errors.New("retry item is not replayable")

// Replayer re-derives state for a failed event. Implementations must not
// re-claim the original event id.
type Replayer interface {
	Replay(ctx context.Context, item *models.RetryQueueItem) error
}

// Failure describes a handler error after admission.
type Failure struct {
	EventID                string
	Kind                   types.EventKind
	UserID                 string
	ProviderSubscriptionID string
	Payload                json.RawMessage
	Err                    error
}

type Options struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int
	TTL            time.Duration
	Metrics        *metrics.Business
	Now            tool.Clock
}

type Queue struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	audit    audit.Recorder
	replayer Replayer
	opts     Options
}

func NewQueue(db *gorm.DB, rec audit.Recorder, replayer Replayer, opts Options, log *zap.SugaredLogger) *Queue {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Minute
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = tool.UTCNow
	}
	return &Queue{db: db, log: log, audit: rec, replayer: replayer, opts: opts}
}

func New(db *gorm.DB, cfg *config.Config, rec audit.Recorder, replayer Replayer, m *metrics.Business, log *zap.SugaredLogger) *Queue {
	return NewQueue(db, rec, replayer, Options{
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		MaxRetries:     cfg.Retry.MaxRetries,
		TTL:            cfg.Retry.TTL,
		Metrics:        m,
	}, log)
}

// Backoff returns the delay before the attempt following attempts failures.
func (q *Queue) Backoff(attempts int) time.Duration {
	d := q.opts.InitialBackoff
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= q.opts.MaxBackoff {
			return q.opts.MaxBackoff
		}
	}
	return d
}

// Enqueue writes the failure audit entry and a pending item.
func (q *Queue) Enqueue(ctx context.Context, f Failure) (*models.RetryQueueItem, error) {
	now := q.opts.Now()
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}

	q.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      string(f.Kind),
		Severity:       types.AuditSeverityError,
		UserID:         f.UserID,
		SubscriptionID: f.ProviderSubscriptionID,
		EventID:        f.EventID,
		Actor:          types.ActorWebhook,
		Action:         types.AuditActionHandlerFailed,
		Metadata:       datatypes.JSONMap{"error": msg},
	})

	item := &models.RetryQueueItem{
		ID:                     tool.GenerateUUIDV7(),
		EventID:                f.EventID,
		EventKind:              string(f.Kind),
		UserID:                 f.UserID,
		ProviderSubscriptionID: f.ProviderSubscriptionID,
		Payload:                datatypes.JSON(f.Payload),
		Error:                  msg,
		RetryCount:             0,
		MaxRetries:             q.opts.MaxRetries,
		NextRetryAt:            now.Add(q.opts.InitialBackoff),
		Status:                 types.RetryStatusPending,
		ExpiresAt:              now.Add(q.opts.TTL),
	}
	if len(item.Payload) == 0 {
		item.Payload = datatypes.JSON("null")
	}
	if err := q.db.WithContext(context.WithoutCancel(ctx)).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue retry item: %w", err)
	}
	q.opts.Metrics.RetryItem("enqueued")
	logctx.FromCtx(ctx, q.log).Warnw("retry item enqueued",
		"retry_id", item.ID,
		"event_id", f.EventID,
		"event_kind", f.Kind,
		"next_retry_at", item.NextRetryAt,
	)
	return item, nil
}

// Summary counts what one ProcessDue pass did.
type Summary struct {
	Due         int `json:"due"`
	Resolved    int `json:"resolved"`
	Rescheduled int `json:"rescheduled"`
	Expired     int `json:"expired"`
	Skipped     int `json:"skipped"`
}

// ProcessDue replays up to limit pending items whose next_retry_at passed.
// Each item is leased with a conditional update first, so concurrent workers
// never replay the same attempt twice.
func (q *Queue) ProcessDue(ctx context.Context, limit int) (Summary, error) {
	var sum Summary
	if limit <= 0 {
		limit = 50
	}
	now := q.opts.Now()
	var due []*models.RetryQueueItem
	if err := q.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", types.RetryStatusPending, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&due).Error; err != nil {
		return sum, fmt.Errorf("failed to load due retry items: %w", err)
	}
	sum.Due = len(due)

	for _, item := range due {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		switch q.process(ctx, item, now) {
		case types.RetryStatusResolved:
			sum.Resolved++
		case types.RetryStatusExpired:
			sum.Expired++
		case types.RetryStatusPending:
			sum.Rescheduled++
		default:
			sum.Skipped++
		}
	}
	return sum, nil
}

// process returns the item's new status, or "" when another worker holds it.
func (q *Queue) process(ctx context.Context, item *models.RetryQueueItem, now time.Time) types.RetryStatus {
	lg := logctx.FromCtx(ctx, q.log).With("retry_id", item.ID, "event_id", item.EventID)

	if now.After(item.ExpiresAt) {
		if q.expire(ctx, item, now, "expired before replay") {
			return types.RetryStatusExpired
		}
		return ""
	}

	attempt := item.RetryCount + 1
	res := q.db.WithContext(ctx).Model(&models.RetryQueueItem{}).
		Where("id = ? AND status = ? AND retry_count = ?", item.ID, types.RetryStatusPending, item.RetryCount).
		Updates(map[string]any{
			"retry_count":     attempt,
			"last_attempt_at": now,
			"next_retry_at":   now.Add(q.Backoff(attempt)),
		})
	if res.Error != nil {
		lg.Errorw("failed to lease retry item", "err", res.Error)
		return ""
	}
	if res.RowsAffected == 0 {
		return ""
	}
	item.RetryCount = attempt

	err := q.replayer.Replay(ctx, item)
	if err == nil {
		if q.resolve(ctx, item, now) {
			return types.RetryStatusResolved
		}
		return ""
	}

	lg.Warnw("retry attempt failed", "attempt", attempt, "err", err)
	if errors.Is(err, ErrNotReplayable) || !apperr.Retryable(err) || attempt >= item.MaxRetries {
		if q.expire(ctx, item, now, err.Error()) {
			return types.RetryStatusExpired
		}
		return ""
	}
	if err := q.db.WithContext(ctx).Model(&models.RetryQueueItem{}).
		Where("id = ?", item.ID).
		Update("error", err.Error()).Error; err != nil {
		lg.Errorw("failed to record retry error", "err", err)
	}
	q.opts.Metrics.RetryItem("rescheduled")
	return types.RetryStatusPending
}

func (q *Queue) resolve(ctx context.Context, item *models.RetryQueueItem, now time.Time) bool {
	if err := q.db.WithContext(ctx).Model(&models.RetryQueueItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":      types.RetryStatusResolved,
			"resolved_at": now,
		}).Error; err != nil {
		logctx.FromCtx(ctx, q.log).Errorw("failed to resolve retry item", "retry_id", item.ID, "err", err)
		return false
	}
	q.opts.Metrics.RetryItem("resolved")
	q.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      item.EventKind,
		Severity:       types.AuditSeverityInfo,
		UserID:         item.UserID,
		SubscriptionID: item.ProviderSubscriptionID,
		EventID:        item.EventID,
		Actor:          types.ActorRetryWorker,
		Action:         types.AuditActionRetryResolved,
		Metadata:       datatypes.JSONMap{"retry_id": item.ID, "attempts": item.RetryCount},
	})
	return true
}

func (q *Queue) expire(ctx context.Context, item *models.RetryQueueItem, now time.Time, reason string) bool {
	res := q.db.WithContext(ctx).Model(&models.RetryQueueItem{}).
		Where("id = ? AND status = ?", item.ID, types.RetryStatusPending).
		Updates(map[string]any{
			"status":          types.RetryStatusExpired,
			"unresolved":      true,
			"error":           reason,
			"last_attempt_at": now,
		})
	if res.Error != nil {
		logctx.FromCtx(ctx, q.log).Errorw("failed to expire retry item", "retry_id", item.ID, "err", res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}
	q.opts.Metrics.RetryItem("expired")
	logctx.FromCtx(ctx, q.log).Errorw("retry item abandoned", "retry_id", item.ID, "event_id", item.EventID, "reason", reason)
	q.audit.Record(ctx, &models.AuditLogEntry{
		EventKind:      item.EventKind,
		Severity:       types.AuditSeverityCritical,
		UserID:         item.UserID,
		SubscriptionID: item.ProviderSubscriptionID,
		EventID:        item.EventID,
		Actor:          types.ActorRetryWorker,
		Action:         types.AuditActionRetryExpired,
		Metadata:       datatypes.JSONMap{"retry_id": item.ID, "attempts": item.RetryCount, "reason": reason},
	})
	return true
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.RetryQueueItem `json:"items"`
	Total int64                    `json:"total"`
}

// List returns items matching req. Filters and sort columns are restricted
// to models.RetryQueueItemFilterFields.
func (q *Queue) List(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		req = &ScanRequest{}
	}
	for _, f := range req.Filters {
		if err := f.Validate(models.RetryQueueItemFilterFields); err != nil {
			return nil, apperr.NewValidation("retry_filter", err.Error())
		}
	}
	size := req.Size
	if size <= 0 || size > 200 {
		size = 50
	}
	order := "created_at desc"
	if req.SortBy != "" {
		f := types.CommonFilter{Field: req.SortBy, Operator: types.CommonFilterOperatorEq, Values: []any{nil}}
		if err := f.Validate(models.RetryQueueItemFilterFields); err != nil {
			return nil, apperr.NewValidation("retry_sort", req.SortBy)
		}
		dir := "desc"
		if req.SortOrder == "asc" {
			dir = "asc"
		}
		order = req.SortBy + " " + dir
	}

	where := types.FiltersAnd(req.Filters)
	var total int64
	if err := q.db.WithContext(ctx).Model(&models.RetryQueueItem{}).Where(where).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count retry items: %w", err)
	}
	var items []*models.RetryQueueItem
	if err := q.db.WithContext(ctx).Where(where).Order(order).Offset(req.From).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list retry items: %w", err)
	}
	return &ScanResponse{Items: items, Total: total}, nil
}

var Module = fx.Options(fx.Provide(New))
