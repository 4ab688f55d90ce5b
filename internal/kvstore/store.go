package kvstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/oriys/courier/internal/logging"
	"github.com/oriys/courier/internal/metrics"
	"github.com/oriys/courier/internal/observability"
)

// DefaultTTLDays is the lifetime of an entry written without an explicit TTL.
const DefaultTTLDays = 30

const dayMs = 86_400_000

const lockStripes = 64

// Store layers envelope expiry over a persistent surface and passes session
// operations straight through to a second surface.
type Store struct {
	local      Surface
	session    Surface
	now        func() time.Time
	defaultTTL float64
	label      string
	locks      [lockStripes]sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for expiry. Tests use it to move time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultTTLDays overrides the 30 day default TTL.
func WithDefaultTTLDays(days float64) Option {
	return func(s *Store) {
		if days > 0 {
			s.defaultTTL = days
		}
	}
}

// WithSessionSurface sets the session surface. It defaults to a new MemorySurface.
func WithSessionSurface(session Surface) Option {
	return func(s *Store) {
		if session != nil {
			s.session = session
		}
	}
}

// WithLabel sets the surface label reported in metrics (default "local").
func WithLabel(label string) Option {
	return func(s *Store) {
		if label != "" {
			s.label = label
		}
	}
}

// New creates a Store over the persistent surface local.
func New(local Surface, opts ...Option) *Store {
	s := &Store{
		local:      local,
		now:        time.Now,
		defaultTTL: DefaultTTLDays,
		label:      "local",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.session == nil {
		s.session = NewMemorySurface()
	}
	return s
}

// lock serializes access to one key so that an expired read's delete cannot
// race a concurrent write of the same key.
func (s *Store) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &s.locks[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// Write stores value under name with the default TTL.
func (s *Store) Write(ctx context.Context, name string, value any) error {
	return s.WriteTTL(ctx, name, value, 0)
}

// WriteTTL stores value under name, expiring ttlDays from now. Fractional days
// are allowed; ttlDays <= 0, NaN or infinity uses the default. Deadlines past
// the int64 range are clamped, so a huge TTL never wraps into the past.
func (s *Store) WriteTTL(ctx context.Context, name string, value any, ttlDays float64) (err error) {
	ctx, span := observability.StartSpan(ctx, "kvstore.WriteTTL", observability.AttrStoreKey.String(name))
	defer func() {
		if err != nil {
			observability.SetSpanError(span, err)
		}
		span.End()
	}()

	if ttlDays <= 0 || math.IsNaN(ttlDays) || math.IsInf(ttlDays, 0) {
		ttlDays = s.defaultTTL
	}
	record, err := encodeEnvelope(value, expiresAt(s.now().UnixMilli(), ttlDays))
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", name, err)
	}

	unlock := s.lock(name)
	defer unlock()

	if err := s.local.Set(ctx, name, record); err != nil {
		metrics.RecordStoreError("set")
		return fmt.Errorf("%w: set %q: %w", ErrStorageUnavailable, name, err)
	}
	metrics.RecordStoreWrite(s.label)
	return nil
}

func expiresAt(nowMs int64, ttlDays float64) int64 {
	deadline := float64(nowMs) + ttlDays*dayMs
	if deadline >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(deadline)
}

// Read returns the live value stored under name.
//
// A key that was never written reads as KindEmpty. An expired entry is
// deleted and reads as KindMissing. A record that is not an envelope is
// returned as KindRaw. Malformed records are never an error.
func (s *Store) Read(ctx context.Context, name string) (_ Value, err error) {
	ctx, span := observability.StartSpan(ctx, "kvstore.Read", observability.AttrStoreKey.String(name))
	defer func() {
		if err != nil {
			observability.SetSpanError(span, err)
		}
		span.End()
	}()

	unlock := s.lock(name)
	defer unlock()

	raw, ok, err := s.local.Get(ctx, name)
	if err != nil {
		metrics.RecordStoreError("get")
		metrics.RecordStoreRead(s.label, "error")
		return Value{}, fmt.Errorf("%w: get %q: %w", ErrStorageUnavailable, name, err)
	}
	if !ok {
		raw = ""
	}

	res := decodeRecord(raw, s.now().UnixMilli())
	if res.evict {
		metrics.RecordStoreEviction()
		logging.Op().Debug("evicting expired entry", "key", name)
		if err := s.local.Remove(ctx, name); err != nil {
			metrics.RecordStoreError("remove")
			return res.value, fmt.Errorf("%w: evict %q: %w", ErrStorageUnavailable, name, err)
		}
	}
	metrics.RecordStoreRead(s.label, res.value.kind.String())
	return res.value, nil
}

// Remove deletes name. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	unlock := s.lock(name)
	defer unlock()

	if err := s.local.Remove(ctx, name); err != nil {
		metrics.RecordStoreError("remove")
		return fmt.Errorf("%w: remove %q: %w", ErrStorageUnavailable, name, err)
	}
	return nil
}

// Keys lists the keys on the persistent surface, when the surface supports it.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	l, ok := s.local.(Lister)
	if !ok {
		return nil, fmt.Errorf("kvstore: surface %T cannot list keys", s.local)
	}
	keys, err := l.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %w", ErrStorageUnavailable, err)
	}
	return keys, nil
}

// WriteSession stores value on the session surface. There is no expiry.
func (s *Store) WriteSession(ctx context.Context, name, value string) error {
	if err := s.session.Set(ctx, name, value); err != nil {
		return fmt.Errorf("%w: session set %q: %w", ErrStorageUnavailable, name, err)
	}
	metrics.RecordStoreWrite("session")
	return nil
}

// ReadSession returns the session value and whether it exists.
func (s *Store) ReadSession(ctx context.Context, name string) (string, bool, error) {
	v, ok, err := s.session.Get(ctx, name)
	if err != nil {
		return "", false, fmt.Errorf("%w: session get %q: %w", ErrStorageUnavailable, name, err)
	}
	return v, ok, nil
}

// RemoveSession deletes a session value.
func (s *Store) RemoveSession(ctx context.Context, name string) error {
	if err := s.session.Remove(ctx, name); err != nil {
		return fmt.Errorf("%w: session remove %q: %w", ErrStorageUnavailable, name, err)
	}
	return nil
}

// Close closes both surfaces.
func (s *Store) Close() error {
	err := s.local.Close()
	if serr := s.session.Close(); err == nil {
		err = serr
	}
	return err
}
