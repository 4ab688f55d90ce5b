// Package circuitbreaker stops dispatching to an API host whose recent calls
// mostly fail at the transport level.
//
// # State machine
//
//	Closed ──(failure rate ≥ ErrorPct)──► Open ──(OpenDuration elapsed)──► HalfOpen
//	  ▲                                                                      │
//	  └──────────────(Probes successes)──────────────────────────────────────┘
//	                  (any probe fails) ───────────────────────────────────► Open
//
// Rates are computed over a sliding window of outcome timestamps. Both
// slices hold only entries inside the window and are capped at
// maxWindowEntries.
package circuitbreaker

import (
	"net/url"
	"sync"
	"time"
)

// State represents the breaker state.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected
	StateHalfOpen              // a limited number of probes pass
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes a breaker. A zero ErrorPct, Window or OpenDuration disables
// breaking in a Registry.
type Config struct {
	ErrorPct     float64       // failure percentage that trips the breaker (0-100)
	MinCalls     int           // calls in the window before the rate is evaluated
	Window       time.Duration // sliding window for the failure rate
	OpenDuration time.Duration // time spent open before probing
	Probes       int           // probes allowed, and required to succeed, in half-open
}

// Enabled reports whether cfg describes a usable breaker.
func (c Config) Enabled() bool {
	return c.ErrorPct > 0 && c.Window > 0 && c.OpenDuration > 0
}

// Breaker guards one API host.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	now       func() time.Time
	state     State
	successes []time.Time
	failures  []time.Time
	openedAt  time.Time
	probes    int
	probesOK  int
}

// New creates a breaker. A nil now uses time.Now.
func New(cfg Config, now func() time.Time) *Breaker {
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.MinCalls <= 0 {
		cfg.MinCalls = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{cfg: cfg, now: now}
}

// Allow reports whether a call may be dispatched. In half-open it hands out
// at most Probes permits.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.now())
	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probes >= b.cfg.Probes {
			return false
		}
		b.probes++
	}
	return true
}

// Success records a call that reached the server and got an interpretable answer.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		b.successes = append(b.successes, now)
		b.trim(now)
	case StateHalfOpen:
		b.probesOK++
		if b.probesOK >= b.cfg.Probes {
			b.state = StateClosed
			b.successes = b.successes[:0]
			b.failures = b.failures[:0]
		}
	}
}

// Failure records a transport failure or rejected status.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case StateClosed:
		b.failures = append(b.failures, now)
		b.trim(now)
		total := len(b.successes) + len(b.failures)
		if total >= b.cfg.MinCalls && float64(len(b.failures))/float64(total)*100 >= b.cfg.ErrorPct {
			b.open(now)
		}
	case StateHalfOpen:
		b.open(now)
	}
}

// State returns the current state, moving Open to HalfOpen once OpenDuration
// has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())
	return b.state
}

func (b *Breaker) open(now time.Time) {
	b.state = StateOpen
	b.openedAt = now
}

// advance must be called under lock.
func (b *Breaker) advance(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cfg.OpenDuration {
		b.state = StateHalfOpen
		b.probes = 0
		b.probesOK = 0
	}
}

const maxWindowEntries = 10000

// trim must be called under lock.
func (b *Breaker) trim(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	b.successes = trimBefore(b.successes, cutoff)
	b.failures = trimBefore(b.failures, cutoff)
	if len(b.successes) > maxWindowEntries {
		b.successes = b.successes[len(b.successes)-maxWindowEntries:]
	}
	if len(b.failures) > maxWindowEntries {
		b.failures = b.failures[len(b.failures)-maxWindowEntries:]
	}
}

func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	copy(times, times[i:])
	return times[:len(times)-i]
}

// Registry keeps one breaker per host.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	now      func() time.Time
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Config, now func() time.Time) *Registry {
	return &Registry{cfg: cfg, now: now, breakers: make(map[string]*Breaker)}
}

// For returns the breaker for the host of rawURL, or nil when the registry
// is disabled.
func (r *Registry) For(rawURL string) *Breaker {
	if r == nil || !r.cfg.Enabled() {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	r.mu.RLock()
	b, ok := r.breakers[host]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[host]; ok {
		return b
	}
	b = New(r.cfg, r.now)
	r.breakers[host] = b
	return b
}

// Snapshot returns host to state name. A nil registry has no hosts.
func (r *Registry) Snapshot() map[string]string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for host, b := range r.breakers {
		out[host] = b.State().String()
	}
	return out
}
