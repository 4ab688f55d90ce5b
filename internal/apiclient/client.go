// Package apiclient sends API calls and interprets the {code, msg, data}
// envelope the backend wraps every response in.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/courier/internal/circuitbreaker"
	"github.com/oriys/courier/internal/cookies"
	"github.com/oriys/courier/internal/logging"
	"github.com/oriys/courier/internal/metrics"
	"github.com/oriys/courier/internal/observability"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultDeviceHeader = "XX-Device-Type"
	DefaultDeviceType   = "pc"
	DefaultTokenHeader  = "XX-token"

	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 10 << 20
	maxErrorBody    = 512
)

// Outcome classifies a fulfilled call.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeAuthExpired Outcome = "auth_expired"
)

// Result is the fulfilled outcome of Send. For OutcomeOK, Data holds the
// envelope's data. For OutcomeAuthExpired, Envelope is the full envelope.
type Result struct {
	Outcome   Outcome
	Status    int
	Data      json.RawMessage
	Envelope  Envelope
	RequestID string
}

// Decode unmarshals Data into dst. A result without data leaves dst untouched.
func (r *Result) Decode(dst any) error {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	return json.Unmarshal(r.Data, dst)
}

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenProvider supplies the session token at dispatch time.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Config holds transport settings.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	DeviceHeader string
	DeviceType   string
	TokenHeader  string
	TimeMarker   string
	Location     *time.Location
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DeviceHeader == "" {
		c.DeviceHeader = DefaultDeviceHeader
	}
	if c.DeviceType == "" {
		c.DeviceType = DefaultDeviceType
	}
	if c.TokenHeader == "" {
		c.TokenHeader = DefaultTokenHeader
	}
	if c.TimeMarker == "" {
		c.TimeMarker = DefaultTimeMarker
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Client sends descriptors and interprets envelopes. It is safe for
// concurrent use.
type Client struct {
	cfg       Config
	doer      Doer
	jar       http.CookieJar
	tokens    TokenProvider
	conn      Connectivity
	guard     Guard
	notifier  Notifier
	indicator Indicator
	breakers  *circuitbreaker.Registry
	calls     *logging.CallLogger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer sets the HTTP transport. An *http.Client's jar is picked up
// for Cookie and ClearCookies.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
		if hc, ok := d.(*http.Client); ok {
			c.jar = hc.Jar
		}
	}
}

// WithTokenProvider sets where the session token is read from.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithConnectivity sets the pre-flight connectivity check.
func WithConnectivity(conn Connectivity) Option {
	return func(c *Client) { c.conn = conn }
}

// WithGuard sets the offline notice guard.
func WithGuard(g Guard) Option {
	return func(c *Client) { c.guard = g }
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithIndicator sets the loading indicator.
func WithIndicator(i Indicator) Option {
	return func(c *Client) { c.indicator = i }
}

// WithBreakers enables per-host circuit breaking. Transport failures and
// rejected statuses count against a host; business outcomes do not.
func WithBreakers(r *circuitbreaker.Registry) Option {
	return func(c *Client) { c.breakers = r }
}

// WithCallLogger sets the per-call logger.
func WithCallLogger(l *logging.CallLogger) Option {
	return func(c *Client) { c.calls = l }
}

// New creates a Client. Without options it dispatches through an
// *http.Client with a public-suffix cookie jar, assumes it is always online
// and guards offline notices with a one-second WindowGuard.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg.withDefaults(),
		conn:      Always(true),
		guard:     NewWindowGuard(DefaultOfflineWindow, nil),
		notifier:  LogNotifier{},
		indicator: nopIndicator{},
		calls:     logging.Calls(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		hc := &http.Client{}
		if jar, err := cookies.NewJar(); err != nil {
			logging.Op().Warn("cookie jar disabled", "error", err)
		} else {
			hc.Jar = jar
			c.jar = jar
		}
		c.doer = hc
	}
	return c
}

// Cookies returns the name and value of every cookie held for the API host.
func (c *Client) Cookies() []*http.Cookie {
	u, ok := c.baseURL()
	if !ok {
		return nil
	}
	return c.jar.Cookies(u)
}

// SetCookies stores cookies for the API host as if it had set them, with
// path "/" when none is given. It restores cookies saved from Cookies.
func (c *Client) SetCookies(cs []*http.Cookie) {
	u, ok := c.baseURL()
	if !ok || len(cs) == 0 {
		return
	}
	for _, ck := range cs {
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.jar.SetCookies(u, cs)
}

// Cookie returns a cookie the API host has set on this client.
func (c *Client) Cookie(name string) (string, bool) {
	u, ok := c.baseURL()
	if !ok {
		return "", false
	}
	return cookies.Get(c.jar, u, name)
}

// ClearCookies expires the named cookies for the API host and its
// registrable domain. With no names every visible cookie is expired.
func (c *Client) ClearCookies(names ...string) {
	u, ok := c.baseURL()
	if !ok {
		return
	}
	if len(names) == 0 {
		cookies.ExpireAll(c.jar, u)
		return
	}
	cookies.Expire(c.jar, u, names...)
}

func (c *Client) baseURL() (*url.URL, bool) {
	if c.jar == nil {
		return nil, false
	}
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// Send performs one call. Offline calls return ErrOffline without
// dispatching. Statuses other than 200, 304 and 400 return a *StatusError.
// A code 0 envelope returns a *BusinessError after OnFailure has run.
// A code 10001 envelope yields OutcomeAuthExpired unless the descriptor
// suppresses it; every other envelope yields OutcomeOK with its data.
func (c *Client) Send(ctx context.Context, d Descriptor) (*Result, error) {
	d = d.withDefaults()
	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := observability.StartClientSpan(ctx, "apiclient.Send",
		observability.AttrRequestID.String(requestID),
		observability.AttrMethod.String(d.Method),
		observability.AttrURL.String(d.URL),
	)
	defer span.End()

	res, status, err := c.send(ctx, d, requestID)
	outcome := outcomeLabel(res, err)
	elapsed := time.Since(start)

	var env *Envelope
	var be *BusinessError
	switch {
	case res != nil:
		env = &res.Envelope
	case errors.As(err, &be):
		env = &be.Envelope
	}

	span.SetAttributes(
		observability.AttrStatus.Int(status),
		observability.AttrOutcome.String(outcome),
	)
	if env != nil && env.HasCode {
		span.SetAttributes(observability.AttrCode.Int(env.Code))
	}
	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		observability.SetSpanOK(span)
	}
	metrics.RecordRequest(d.Method, outcome, elapsed)

	entry := &logging.CallLog{
		Timestamp:  start,
		RequestID:  requestID,
		TraceID:    observability.GetTraceID(ctx),
		Method:     d.Method,
		URL:        d.URL,
		Status:     status,
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
	}
	if env != nil {
		entry.Code = env.Code
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.calls.Log(entry)

	return res, err
}

func (c *Client) send(ctx context.Context, d Descriptor, requestID string) (*Result, int, error) {
	if !c.conn.Online(ctx) {
		fired := c.guard.Allow(ctx)
		metrics.RecordOfflineNotice(fired)
		if fired {
			c.notifier.Notify(ctx, Notice{Kind: NoticeOffline, Message: OfflineMessage})
		}
		return nil, 0, ErrOffline
	}

	req, err := c.newRequest(ctx, d, requestID)
	if err != nil {
		return nil, 0, err
	}

	breaker := c.breakers.For(req.URL.String())
	if breaker != nil && !breaker.Allow() {
		return nil, 0, fmt.Errorf("%w: %s", ErrCircuitOpen, req.URL.Host)
	}

	if d.ShowLoading {
		hide := c.indicator.Show(ctx)
		defer hide()
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req = req.WithContext(ctx)

	metrics.IncActiveRequests()
	resp, err := c.doer.Do(req)
	metrics.DecActiveRequests()
	if err != nil {
		if breaker != nil {
			breaker.Failure()
		}
		logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).Warn("request failed", "request_id", requestID, "method", d.Method, "url", req.URL.String(), "error", err)
		return nil, 0, fmt.Errorf("%w: %s %s: %w", ErrTransport, d.Method, d.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if breaker != nil {
			breaker.Failure()
		}
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	if !acceptedStatus(resp.StatusCode) {
		if breaker != nil {
			breaker.Failure()
		}
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	if breaker != nil {
		breaker.Success()
	}

	res, err := c.interpret(ctx, d, resp.StatusCode, body)
	if res != nil {
		res.RequestID = requestID
	}
	return res, resp.StatusCode, err
}

func (c *Client) newRequest(ctx context.Context, d Descriptor, requestID string) (*http.Request, error) {
	payload := normalizePayload(d.Payload, c.cfg.TimeMarker, c.cfg.Location)
	target := c.resolve(d.URL)

	var body io.Reader
	if d.hasBody() {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		query, err := encodeQuery(payload)
		if err != nil {
			return nil, err
		}
		if query != "" {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + query
		}
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(c.cfg.DeviceHeader, c.cfg.DeviceType)
	req.Header.Set(requestIDHeader, requestID)
	if d.RequiresToken {
		token := ""
		if c.tokens != nil {
			if token, err = c.tokens.Token(ctx); err != nil {
				return nil, fmt.Errorf("read token: %w", err)
			}
		}
		req.Header.Set(c.cfg.TokenHeader, token)
	}
	observability.InjectHTTP(ctx, req.Header)
	return req, nil
}

func (c *Client) interpret(ctx context.Context, d Descriptor, status int, body []byte) (*Result, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Result{Outcome: OutcomeOK, Status: status}, nil
	}

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	if isNull(trimmed) {
		return nil, fmt.Errorf("%w: null body", ErrMalformedResponse)
	}
	// Arrays, strings and numbers carry no envelope fields and resolve empty.
	if trimmed[0] != '{' {
		return &Result{Outcome: OutcomeOK, Status: status}, nil
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	switch {
	case env.isFailure():
		if d.OnFailure != nil {
			d.OnFailure(env)
		}
		c.notifier.Notify(ctx, Notice{Kind: NoticeFailure, Message: env.Message, Envelope: &env})
		return nil, &BusinessError{Envelope: env}
	case env.isAuthExpired() && !d.SuppressAuthNotice:
		c.notifier.Notify(ctx, Notice{Kind: NoticeAuthExpired, Message: env.Message, Envelope: &env})
		return &Result{Outcome: OutcomeAuthExpired, Status: status, Envelope: env}, nil
	default:
		return &Result{Outcome: OutcomeOK, Status: status, Data: env.Data, Envelope: env}, nil
	}
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || c.cfg.BaseURL == "" {
		return path
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func acceptedStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusNotModified || code == http.StatusBadRequest
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

func outcomeLabel(res *Result, err error) string {
	var se *StatusError
	switch {
	case err == nil && res != nil:
		return string(res.Outcome)
	case errors.Is(err, ErrOffline):
		return "offline"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrBusinessFailure):
		return "business_failure"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.As(err, &se):
		return "bad_status"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrTransport):
		return "transport_failure"
	default:
		return "error"
	}
}
