// Package idempotency decides first-time versus duplicate for webhook events
// and reconciliation requests using insert-or-nothing on primary keys.
package idempotency

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
	"gorm.io/gorm/clause"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// ErrUnavailable wraps store failures during admission. Callers must not run
// handlers or schedule retries when they see it.
var ErrUnavailable = errors.New("admission store unavailable")

var errDenied = errors.New("claim denied")

type Options struct {
	EventRetention time.Duration
	WindowSize     time.Duration
	WindowGrace    time.Duration
	WindowTTL      time.Duration
	Now            tool.Clock
}

type Store struct {
	db   *gorm.DB
	log  *zap.SugaredLogger
	opts Options
}

func NewStore(db *gorm.DB, opts Options, log *zap.SugaredLogger) *Store {
	if opts.EventRetention <= 0 {
		opts.EventRetention = 30 * 24 * time.Hour
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 2 * time.Minute
	}
	if opts.WindowGrace < 0 || opts.WindowGrace >= opts.WindowSize {
		opts.WindowGrace = 0
	}
	if opts.WindowTTL <= 0 {
		opts.WindowTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = tool.UTCNow
	}
	return &Store{db: db, log: log, opts: opts}
}

func New(db *gorm.DB, cfg *config.Config, log *zap.SugaredLogger) *Store {
	return NewStore(db, Options{
		EventRetention: cfg.Idempotency.EventRetention,
		WindowSize:     cfg.Idempotency.WindowSize,
		WindowGrace:    cfg.Idempotency.WindowGrace,
		WindowTTL:      cfg.Idempotency.WindowTTL,
	}, log)
}

// ClaimEvent admits eventID exactly once. A duplicate returns false with a
// nil error.
func (s *Store) ClaimEvent(ctx context.Context, eventID string, kind types.EventKind) (bool, error) {
	now := s.opts.Now()
	marker := &models.ProcessedEvent{
		EventID:     eventID,
		EventKind:   string(kind),
		ProcessedAt: now,
		ExpiresAt:   now.Add(s.opts.EventRetention),
	}
	var admitted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(marker)
		if res.Error != nil {
			return res.Error
		}
		admitted = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: failed to claim event %s: %w", ErrUnavailable, eventID, err)
	}
	if !admitted {
		logctx.FromCtx(ctx, s.log).Infow("duplicate event", "event_id", eventID, "event_kind", kind)
	}
	return admitted, nil
}

// WindowClaim is the outcome of ClaimWindow.
type WindowClaim struct {
	Admitted bool
	Bucket   int64
	// Keys are the claim rows owned by an admitted request.
	Keys []string
	// CachedResult is the stored result of the request that holds the
	// window, when a denied claim finds one.
	CachedResult json.RawMessage
}

func windowKey(actorID string, bucket int64) string {
	return fmt.Sprintf("%s:%d", actorID, bucket)
}

// Bucket returns the window index containing t.
func (s *Store) Bucket(t time.Time) int64 {
	size := int64(s.opts.WindowSize / time.Second)
	if size <= 0 {
		size = 1
	}
	return t.Unix() / size
}

// ClaimWindow admits at most one request per actor per window. Inside the
// grace period after a boundary the previous window is claimed too, so two
// requests straddling the boundary collide on the same key.
func (s *Store) ClaimWindow(ctx context.Context, actorID string) (*WindowClaim, error) {
	now := s.opts.Now()
	bucket := s.Bucket(now)
	bucketStart := time.Unix(bucket*int64(s.opts.WindowSize/time.Second), 0)

	keys := []string{}
	if s.opts.WindowGrace > 0 && now.Sub(bucketStart) < s.opts.WindowGrace {
		keys = append(keys, windowKey(actorID, bucket-1))
	}
	keys = append(keys, windowKey(actorID, bucket))

	var blockedBy string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, key := range keys {
			b := bucket
			if i == 0 && len(keys) == 2 {
				b = bucket - 1
			}
			row := &models.SyncClaim{
				Key:       key,
				ActorID:   actorID,
				Bucket:    b,
				ClaimedAt: now,
				ExpiresAt: now.Add(s.opts.WindowTTL),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				blockedBy = key
				return errDenied
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return &WindowClaim{Admitted: true, Bucket: bucket, Keys: keys}, nil
	case !errors.Is(err, errDenied):
		return nil, fmt.Errorf("%w: failed to claim sync window for %s: %w", ErrUnavailable, actorID, err)
	}

	claim := &WindowClaim{Bucket: bucket}
	var holder models.SyncClaim
	res := s.db.WithContext(ctx).Where("claim_key = ?", blockedBy).Limit(1).Find(&holder)
	if res.Error != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to load cached sync result", "key", blockedBy, "err", res.Error)
		return claim, nil
	}
	if res.RowsAffected > 0 && holder.Result != nil {
		claim.CachedResult = json.RawMessage(*holder.Result)
	}
	return claim, nil
}

// SaveWindowResult stores result on every row owned by an admitted claim.
func (s *Store) SaveWindowResult(ctx context.Context, claim *WindowClaim, result any) error {
	if claim == nil || !claim.Admitted || len(claim.Keys) == 0 {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal sync result: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.SyncClaim{}).
		Where("claim_key IN ?", claim.Keys).
		Update("result", datatypes.JSON(raw)).Error; err != nil {
		return fmt.Errorf("failed to save sync result: %w", err)
	}
	return nil
}

// ReleaseWindow drops the rows of an admitted claim so a failed request does
// not block its actor for the rest of the window.
func (s *Store) ReleaseWindow(ctx context.Context, claim *WindowClaim) error {
	if claim == nil || !claim.Admitted || len(claim.Keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(context.WithoutCancel(ctx)).
		Where("claim_key IN ?", claim.Keys).
		Delete(&models.SyncClaim{}).Error; err != nil {
		return fmt.Errorf("failed to release sync window: %w", err)
	}
	return nil
}

// PurgeExpired deletes markers and claims past their retention.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.opts.Now()
	var total int64
	for _, m := range []any{&models.ProcessedEvent{}, &models.SyncClaim{}} {
		res := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(m)
		if res.Error != nil {
			return total, fmt.Errorf("failed to purge expired claims: %w", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
