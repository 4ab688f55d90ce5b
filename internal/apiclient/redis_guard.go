package apiclient

import (
	"context"
	"time"

	"github.com/oriys/courier/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisGuard shares one offline window across processes with a SET NX PX
// sentinel. When Redis fails it falls back to an in-process window.
type RedisGuard struct {
	client   *redis.Client
	key      string
	window   time.Duration
	fallback *WindowGuard
}

// NewRedisGuard returns a guard keyed by key (default "courier:offline").
func NewRedisGuard(client *redis.Client, key string, window time.Duration) *RedisGuard {
	if key == "" {
		key = "courier:offline"
	}
	if window <= 0 {
		window = DefaultOfflineWindow
	}
	return &RedisGuard{
		client:   client,
		key:      key,
		window:   window,
		fallback: NewWindowGuard(window, nil),
	}
}

func (g *RedisGuard) Allow(ctx context.Context) bool {
	ok, err := g.client.SetNX(ctx, g.key, 1, g.window).Result()
	if err != nil {
		logging.Op().Warn("offline guard: redis unavailable, using local window", "key", g.key, "error", err)
		return g.fallback.Allow(ctx)
	}
	return ok
}
