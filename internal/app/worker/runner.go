// Package worker drains the retry queue and purges expired admission rows on
// a timer.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/idempotency"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/app/service/retry"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
)

// purgeEvery is how many ticks pass between retention sweeps.
const purgeEvery = 20

type Runner struct {
	log      *zap.SugaredLogger
	queue    *retry.Queue
	store    *idempotency.Store
	interval time.Duration
	limit    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticks  int
}

func NewRunner(cfg *config.Config, queue *retry.Queue, store *idempotency.Store, log *zap.SugaredLogger) *Runner {
	interval := cfg.Retry.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{log: log, queue: queue, store: store, interval: interval, limit: cfg.Retry.BatchLimit}
}

func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

// Stop cancels the loop and waits for the current tick up to ctx.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one pass of retries and, every purgeEvery ticks, a retention
// sweep.
func (r *Runner) Tick(ctx context.Context) {
	sum, err := r.queue.ProcessDue(ctx, r.limit)
	if err != nil {
		r.log.Errorw("retry pass failed", "err", err)
	} else if sum.Due > 0 {
		r.log.Infow("retry pass", "due", sum.Due, "resolved", sum.Resolved, "rescheduled", sum.Rescheduled, "expired", sum.Expired, "skipped", sum.Skipped)
	}

	r.ticks++
	if r.ticks%purgeEvery != 1 {
		return
	}
	n, err := r.store.PurgeExpired(ctx)
	if err != nil {
		r.log.Errorw("retention sweep failed", "err", err)
		return
	}
	if n > 0 {
		r.log.Infow("purged expired claims", "rows", n)
	}
}

func run(lc fx.Lifecycle, cfg *config.Config, r *Runner, log *zap.SugaredLogger) {
	if !cfg.Retry.WorkerEnabled {
		log.Infow("retry worker disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting retry worker", "interval", r.interval, "limit", r.limit)
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping retry worker")
			return r.Stop(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewRunner),
	fx.Invoke(run),
)
