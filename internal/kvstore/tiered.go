package kvstore

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a TieredSurface serves a record from
// memory before going back to the backing surface.
const DefaultCacheTTL = 10 * time.Second

// TieredSurface fronts a shared surface (Redis, SQLite) with a short-lived
// in-process copy. Reads hit memory first and fall through on a miss,
// populating memory from the backing surface. Writes and removals go to the
// backing surface first and only then touch memory, so a failed write never
// leaves a value visible locally that other processes cannot see.
//
// Another process's write may be hidden for up to the cache TTL.
type TieredSurface struct {
	backing Surface
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedRecord
}

type cachedRecord struct {
	value string
	until time.Time
}

// NewTieredSurface wraps backing. A non-positive ttl uses DefaultCacheTTL;
// a nil now uses time.Now.
func NewTieredSurface(backing Surface, ttl time.Duration, now func() time.Time) *TieredSurface {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TieredSurface{
		backing: backing,
		ttl:     ttl,
		now:     now,
		cache:   make(map[string]cachedRecord),
	}
}

func (t *TieredSurface) Get(ctx context.Context, key string) (string, bool, error) {
	now := t.now()
	t.mu.Lock()
	rec, ok := t.cache[key]
	if ok && now.After(rec.until) {
		delete(t.cache, key)
		ok = false
	}
	t.mu.Unlock()
	if ok {
		return rec.value, true, nil
	}

	value, found, err := t.backing.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}
	t.remember(key, value, now)
	return value, true, nil
}

func (t *TieredSurface) Set(ctx context.Context, key, value string) error {
	if err := t.backing.Set(ctx, key, value); err != nil {
		t.forget(key)
		return err
	}
	t.remember(key, value, t.now())
	return nil
}

func (t *TieredSurface) Remove(ctx context.Context, key string) error {
	t.forget(key)
	return t.backing.Remove(ctx, key)
}

// Keys lists the backing surface. Surfaces that cannot list return no keys.
func (t *TieredSurface) Keys(ctx context.Context) ([]string, error) {
	if l, ok := t.backing.(Lister); ok {
		return l.Keys(ctx)
	}
	return nil, nil
}

// Flush drops every in-memory record.
func (t *TieredSurface) Flush() {
	t.mu.Lock()
	t.cache = make(map[string]cachedRecord)
	t.mu.Unlock()
}

// Close flushes memory and closes the backing surface.
func (t *TieredSurface) Close() error {
	t.Flush()
	return t.backing.Close()
}

func (t *TieredSurface) remember(key, value string, now time.Time) {
	t.mu.Lock()
	t.cache[key] = cachedRecord{value: value, until: now.Add(t.ttl)}
	t.mu.Unlock()
}

func (t *TieredSurface) forget(key string) {
	t.mu.Lock()
	delete(t.cache, key)
	t.mu.Unlock()
}
