package kvstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisSurface is a Surface backed by Redis. Keys are namespaced with a
// prefix so several stores can share one database. Redis-side TTLs are not
// used; expiry stays in the envelope.
type RedisSurface struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection settings for NewRedisSurface.
type RedisConfig struct {
	Addr      string // Redis address (e.g. "localhost:6379")
	Password  string
	DB        int
	KeyPrefix string // default: "courier:"
}

// NewRedisSurface creates a Redis-backed surface with its own client.
func NewRedisSurface(cfg RedisConfig) *RedisSurface {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisSurfaceFromClient(client, cfg.KeyPrefix)
}

// NewRedisSurfaceFromClient creates a surface using an existing client.
func NewRedisSurfaceFromClient(client *redis.Client, prefix string) *RedisSurface {
	if prefix == "" {
		prefix = "courier:"
	}
	return &RedisSurface{client: client, prefix: prefix}
}

func (r *RedisSurface) key(k string) string {
	return r.prefix + k
}

func (r *RedisSurface) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisSurface) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisSurface) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Keys scans the prefix and returns the unprefixed keys in sorted order.
func (r *RedisSurface) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping verifies connectivity to Redis.
func (r *RedisSurface) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSurface) Close() error {
	return r.client.Close()
}
