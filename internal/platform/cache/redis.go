// Package cache wraps the optional redis instance behind a minimal KV.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Redis struct {
	client *redis.Client
}

var _ KV = (*Redis)(nil)

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// NewRedis returns nil when redis.addr is empty; callers treat a nil KV as
// "no cache".
func NewRedis(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) KV {
	if cfg.Redis.Addr == "" {
		log.Infow("redis not configured, user directory cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// a cold cache is not fatal; lookups fall through to the database
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warnw("could not connect to redis", "addr", cfg.Redis.Addr, "err", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return FromClient(client)
}

// FromClient wraps an existing client.
func FromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

var Module = fx.Options(
	fx.Provide(NewRedis),
)
