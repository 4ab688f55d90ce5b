package apiclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Connectivity reports whether the network is usable. It is consulted once
// per call before dispatch.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Always reports a fixed connectivity state.
type Always bool

func (a Always) Online(context.Context) bool { return bool(a) }

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func(ctx context.Context) bool

func (f ConnectivityFunc) Online(ctx context.Context) bool { return f(ctx) }

// DialProbe treats the network as online when a TCP connection to Addr
// succeeds within Timeout.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

func (p DialProbe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ProbeFor builds a DialProbe for the host of baseURL, defaulting the port
// from the scheme.
func ProbeFor(baseURL string, timeout time.Duration) (DialProbe, error) {
	return ProbeVia(baseURL, timeout, nil)
}

// ProbeVia is ProbeFor for a transport that may route through a proxy.
// When proxy (e.g. http.ProxyFromEnvironment) names a proxy for baseURL,
// the probe dials the proxy instead of the API host.
func ProbeVia(baseURL string, timeout time.Duration, proxy func(*http.Request) (*url.URL, error)) (DialProbe, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return DialProbe{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Hostname() == "" {
		return DialProbe{}, fmt.Errorf("base url %q has no host", baseURL)
	}
	if proxy != nil {
		pu, err := proxy(&http.Request{Method: http.MethodGet, URL: u, Header: http.Header{}})
		if err != nil {
			return DialProbe{}, fmt.Errorf("resolve proxy: %w", err)
		}
		if pu != nil && pu.Hostname() != "" {
			u = pu
		}
	}
	return DialProbe{Addr: hostPort(u), Timeout: timeout}, nil
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
