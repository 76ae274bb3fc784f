// Package servicetest wires the sync engine services over an in-memory
// database for tests.
package servicetest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/audit"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/fanout"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/inbound"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/reconcile"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/subscription"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/userdir"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/db/dbtest"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/paddle/paddletest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/types"
)

// Now is the default test time; a multiple of the default sync window.
var Now = time.Date(2025, 1, 15, 12, 1, 0, 0, time.UTC)

type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type Env struct {
	T             testing.TB
	DB            *gorm.DB
	Cfg           *config.Config
	Log           *zap.SugaredLogger
	Clock         *Clock
	Provider      *paddletest.Fake
	Directory     userdir.Directory
	Audit         *audit.Service
	Updater       *fanout.Updater
	Store         *idempotency.Store
	Inbound       *inbound.Service
	Subscriptions *subscription.Service
	Reconcile     *reconcile.Service
	Retry         *retry.Queue
}

func New(t testing.TB) *Env {
	t.Helper()
	gdb := dbtest.New(t)
	cfg := config.Default()
	cfg.Paddle.WebhookSecret = "whsec_test"
	cfg.Auth.JWTSecret = "jwt_test"
	log := zap.NewNop().Sugar()
	clk := &Clock{t: Now}

	e := &Env{T: t, DB: gdb, Cfg: cfg, Log: log, Clock: clk, Provider: paddletest.New()}
	e.Directory = userdir.NewDBDirectory(gdb)
	e.Audit = audit.NewWithClock(gdb, log, clk.Now)
	e.Updater = fanout.NewUpdater(gdb, fanout.Options{BatchSize: cfg.Fanout.BatchSize, LookaheadDays: cfg.Fanout.LookaheadDays, Now: clk.Now}, log)
	e.Inbound = inbound.NewWithClock(gdb, log, clk.Now)
	e.Store = idempotency.NewStore(gdb, idempotency.Options{
		EventRetention: cfg.Idempotency.EventRetention,
		WindowSize:     cfg.Idempotency.WindowSize,
		WindowGrace:    cfg.Idempotency.WindowGrace,
		WindowTTL:      cfg.Idempotency.WindowTTL,
		Now:            clk.Now,
	}, log)
	e.Subscriptions = subscription.NewService(cfg, gdb, log, e.Directory, e.Updater, e.Audit, e.Provider).WithClock(clk.Now)
	e.Reconcile = reconcile.New(e.Store, e.Subscriptions, e.Provider, log).WithClock(clk.Now)
	e.Retry = retry.NewQueue(gdb, e.Audit, e.Reconcile, retry.Options{
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
		MaxRetries:     cfg.Retry.MaxRetries,
		TTL:            cfg.Retry.TTL,
		Now:            clk.Now,
	}, log)
	return e
}

func (e *Env) SeedUser(id string) { dbtest.SeedUser(e.T, e.DB, id) }

func (e *Env) User(id string) *models.UserProfile { return dbtest.LoadUser(e.T, e.DB, id) }

func (e *Env) Subscription(providerID string) *models.Subscription {
	e.T.Helper()
	var s models.Subscription
	require.NoError(e.T, e.DB.First(&s, "provider_subscription_id = ?", providerID).Error)
	return &s
}

// AuditEntries returns entries with the given action, oldest first.
func (e *Env) AuditEntries(action types.AuditAction) []models.AuditLogEntry {
	e.T.Helper()
	var out []models.AuditLogEntry
	require.NoError(e.T, e.DB.Where("action = ?", action).Order("timestamp, id").Find(&out).Error)
	return out
}

func (e *Env) Count(model any) int64 {
	e.T.Helper()
	var n int64
	require.NoError(e.T, e.DB.Model(model).Count(&n).Error)
	return n
}
