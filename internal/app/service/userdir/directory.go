// Package userdir answers "does this user exist" for ownership checks.
package userdir

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/cache"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
)

type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// DBDirectory checks the user_profile table.
type DBDirectory struct {
	db *gorm.DB
}

func NewDBDirectory(db *gorm.DB) *DBDirectory {
	return &DBDirectory{db: db}
}

func (d *DBDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var n int64
	if err := d.db.WithContext(ctx).Model(&models.UserProfile{}).Where("id = ?", userID).Limit(1).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return n > 0, nil
}

// CachedDirectory caches positive answers only, so a user created after a
// negative lookup is visible immediately.
type CachedDirectory struct {
	inner Directory
	kv    cache.KV
	ttl   time.Duration
	log   *zap.SugaredLogger
}

func NewCachedDirectory(inner Directory, kv cache.KV, ttl time.Duration, log *zap.SugaredLogger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{inner: inner, kv: kv, ttl: ttl, log: log}
}

func cacheKey(userID string) string { return "userdir:exists:" + userID }

func (d *CachedDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	lg := logctx.FromCtx(ctx, d.log)
	v, err := d.kv.Get(ctx, cacheKey(userID))
	switch {
	case err == nil && v == "1":
		return true, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		lg.Warnw("user directory cache read failed", "user_id", userID, "err", err)
	}

	ok, err := d.inner.Exists(ctx, userID)
	if err != nil || !ok {
		return ok, err
	}
	if err := d.kv.Set(ctx, cacheKey(userID), "1", d.ttl); err != nil {
		lg.Warnw("user directory cache write failed", "user_id", userID, "err", err)
	}
	return true, nil
}

func NewDirectory(db *gorm.DB, kv cache.KV, cfg *config.Config, log *zap.SugaredLogger) Directory {
	base := NewDBDirectory(db)
	if kv == nil {
		return base
	}
	return NewCachedDirectory(base, kv, cfg.Redis.UserTTL, log)
}

var Module = fx.Options(
	fx.Provide(NewDirectory),
)
