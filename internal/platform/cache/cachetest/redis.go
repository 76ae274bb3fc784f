// Package cachetest runs the cache against an in-process redis server.
package cachetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/platform/cache"
)

// New starts a miniredis server for the test and returns a KV bound to it.
// The server is returned so tests can fast-forward TTLs or inject errors.
func New(t testing.TB) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.FromClient(client), srv
}
