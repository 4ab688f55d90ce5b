package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oriys/courier/internal/apiclient"
	"github.com/oriys/courier/internal/circuitbreaker"
	"github.com/oriys/courier/internal/kvstore"
	"github.com/oriys/courier/internal/logging"
	"github.com/oriys/courier/internal/metrics"
)

// cookieKey is where the API host's cookies are kept between commands.
const cookieKey = "courier.cookies"

// deps bundles the store and client built from cfg for one command.
type deps struct {
	store    *kvstore.Store
	client   *apiclient.Client
	breakers *circuitbreaker.Registry
	redis    *redis.Client
}

// Close saves the client's cookies, then releases the store and, unless
// the store already owns it, the Redis client.
func (r *deps) Close() {
	if r.client != nil {
		r.saveCookies(context.Background())
	}
	if snap := r.breakers.Snapshot(); len(snap) > 0 {
		logging.Op().Debug("circuit breakers", "hosts", snap)
	}
	if r.store != nil {
		r.store.Close()
	}
	if r.redis != nil && cfg.Storage.Backend != "redis" {
		r.redis.Close()
	}
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadCookies restores cookies a previous command saved for the API host.
func (r *deps) loadCookies(ctx context.Context) {
	v, err := r.store.Read(ctx, cookieKey)
	if err != nil || !v.Found() {
		return
	}
	var saved []savedCookie
	if err := v.Decode(&saved); err != nil {
		logging.Op().Warn("discarding saved cookies", "error", err)
		return
	}
	cs := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cs = append(cs, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	r.client.SetCookies(cs)
}

// saveCookies writes the jar back to the store, or removes the record when
// the jar is empty.
func (r *deps) saveCookies(ctx context.Context) {
	cs := r.client.Cookies()
	var err error
	if len(cs) == 0 {
		err = r.store.Remove(ctx, cookieKey)
	} else {
		saved := make([]savedCookie, 0, len(cs))
		for _, c := range cs {
			saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
		}
		err = r.store.Write(ctx, cookieKey, saved)
	}
	if err != nil {
		logging.Op().Warn("saving cookies failed", "error", err)
	}
}

func (r *deps) redisClient() *redis.Client {
	if r.redis == nil {
		r.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return r.redis
}

// getStore opens the configured persistent surface.
func getStore() (*deps, error) {
	r := &deps{}

	var local kvstore.Surface
	switch cfg.Storage.Backend {
	case "memory":
		local = kvstore.NewMemorySurface()
	case "redis":
		local = kvstore.NewRedisSurfaceFromClient(r.redisClient(), cfg.Redis.KeyPrefix)
	default:
		s, err := kvstore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		local = s
	}
	if cfg.Storage.CacheTTL > 0 && cfg.Storage.Backend != "memory" {
		local = kvstore.NewTieredSurface(local, cfg.Storage.CacheTTL, nil)
	}

	r.store = kvstore.New(local,
		kvstore.WithDefaultTTLDays(cfg.Storage.DefaultTTLDays),
		kvstore.WithLabel(cfg.Storage.Backend),
	)
	return r, nil
}

// getClient opens the store and builds an API client reading its token from it.
func getClient() (*deps, error) {
	r, err := getStore()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Client.Location()
	if err != nil {
		r.Close()
		return nil, err
	}
	base := cfg.APIBaseURL()

	var guard apiclient.Guard = apiclient.NewWindowGuard(cfg.Client.OfflineWindow, nil)
	if cfg.Client.Guard == "redis" {
		guard = apiclient.NewRedisGuard(r.redisClient(), cfg.Redis.KeyPrefix+"offline", cfg.Client.OfflineWindow)
	}

	var conn apiclient.Connectivity = apiclient.Always(true)
	switch {
	case cfg.Client.ProbeAddr != "":
		conn = apiclient.DialProbe{Addr: cfg.Client.ProbeAddr, Timeout: cfg.Client.ProbeTimeout}
	default:
		if probe, err := apiclient.ProbeVia(base, cfg.Client.ProbeTimeout, http.ProxyFromEnvironment); err == nil {
			conn = probe
		} else {
			logging.Op().Debug("connectivity probe disabled", "base_url", base, "error", err)
		}
	}

	r.breakers = circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorPct:     cfg.Client.Breaker.ErrorPct,
		MinCalls:     cfg.Client.Breaker.MinCalls,
		Window:       cfg.Client.Breaker.Window,
		OpenDuration: cfg.Client.Breaker.OpenDuration,
		Probes:       cfg.Client.Breaker.Probes,
	}, nil)

	r.client = apiclient.New(apiclient.Config{
		BaseURL:      base,
		Timeout:      cfg.Client.Timeout,
		DeviceHeader: cfg.Client.DeviceHeader,
		DeviceType:   cfg.Client.DeviceType,
		TokenHeader:  cfg.Client.TokenHeader,
		TimeMarker:   cfg.Client.TimeMarker,
		Location:     loc,
	},
		apiclient.WithTokenProvider(kvstore.TokenSource{Store: r.store, Key: cfg.Client.TokenKey}),
		apiclient.WithGuard(guard),
		apiclient.WithConnectivity(conn),
		apiclient.WithIndicator(spinner{}),
		apiclient.WithBreakers(r.breakers),
	)
	r.loadCookies(context.Background())
	return r, nil
}

// pushMetrics sends this command's metrics to the configured Pushgateway.
func pushMetrics(ctx context.Context, command string) error {
	if cfg == nil || cfg.Metrics.PushURL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job, map[string]string{"command": command})
}

// spinner prints a loading marker to stderr around dispatch.
type spinner struct{}

func (spinner) Show(context.Context) func() {
	fmt.Fprint(os.Stderr, "loading...")
	return func() { fmt.Fprint(os.Stderr, "\r          \r") }
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
