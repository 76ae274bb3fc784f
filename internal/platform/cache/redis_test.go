package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/cache"
	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/cache/cachetest"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
)

func TestRedis_GetSetDel(t *testing.T) {
	kv, srv := cachetest.New(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "user:u_1")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, kv.Set(ctx, "user:u_1", "1", time.Minute))
	v, err := kv.Get(ctx, "user:u_1")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	srv.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "user:u_1")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, kv.Set(ctx, "user:u_2", "1", 0))
	require.NoError(t, kv.Del(ctx, "user:u_2"))
	_, err = kv.Get(ctx, "user:u_2")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestRedis_ServerError(t *testing.T) {
	kv, srv := cachetest.New(t)
	srv.SetError("LOADING")

	_, err := kv.Get(context.Background(), "user:u_1")
	require.Error(t, err)
	require.NotErrorIs(t, err, cache.ErrMiss)
}

func TestNewRedis_DisabledWithoutAddr(t *testing.T) {
	cfg := config.Default()
	require.Nil(t, cache.NewRedis(nil, cfg, zap.NewNop().Sugar()))
}
