package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/courier/internal/circuitbreaker"
	"github.com/oriys/courier/internal/logging"
)

// recordedRequest captures what the server saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

type testServer struct {
	*httptest.Server
	mu   sync.Mutex
	reqs []recordedRequest
}

func newTestServer(t *testing.T, status int, body string) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			json.Unmarshal(data, &rec.Body)
		}
		ts.mu.Lock()
		ts.reqs = append(ts.reqs, rec)
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) last(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.reqs) == 0 {
		t.Fatal("server saw no request")
	}
	return ts.reqs[len(ts.reqs)-1]
}

func (ts *testServer) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.reqs)
}

// noticeRecorder is a Notifier that keeps every notice.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) count(kind NoticeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, notice := range r.notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func newTestClient(baseURL string, opts ...Option) *Client {
	opts = append([]Option{WithCallLogger(logging.NewCallLogger(nil))}, opts...)
	return New(Config{BaseURL: baseURL, Location: time.FixedZone("CST", 8*3600)}, opts...)
}

func TestSend_ResolvesData(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1,"msg":"ok","data":{"id":7}}`)
	c := newTestClient(srv.URL)

	res, err := c.Send(context.Background(), Descriptor{URL: "/api/home"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Outcome != OutcomeOK {
		t.Fatalf("expected ok outcome, got %s", res.Outcome)
	}
	if string(res.Data) != `{"id":7}` {
		t.Fatalf("expected data payload, got %s", res.Data)
	}
	var out struct{ ID int }
	if err := res.Decode(&out); err != nil || out.ID != 7 {
		t.Fatalf("Decode: %+v %v", out, err)
	}
	if res.RequestID == "" {
		t.Fatal("expected a request id")
	}

	req := srv.last(t)
	if req.Method != http.MethodPost {
		t.Fatalf("expected default POST, got %s", req.Method)
	}
	if req.Path != "/api/home" {
		t.Fatalf("unexpected path %s", req.Path)
	}
	if got := req.Header.Get("XX-Device-Type"); got != "pc" {
		t.Fatalf("expected device header pc, got %q", got)
	}
	if req.Header.Get("X-Request-ID") != res.RequestID {
		t.Fatal("request id header should match result")
	}
	if _, ok := req.Header["Xx-Token"]; ok {
		t.Fatal("token header must not be sent without RequiresToken")
	}
}

func TestSend_NormalizesMarkedTimes(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1,"data":null}`)
	c := newTestClient(srv.URL)

	payload := map[string]any{
		"start_time": "Sun Oct 18 2026 14:03:05 GMT+0800 (中国标准时间)",
		"end_time":   "2026-10-19 00:00:00",
		"name":       "Sun Oct 18 2026 14:03:05 GMT+0800 (中国标准时间)",
	}
	if _, err := c.Send(context.Background(), Descriptor{URL: "/api/list", Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := srv.last(t).Body
	if body["start_time"] != "2026-10-18 14:03:05" {
		t.Fatalf("start_time not normalized: %v", body["start_time"])
	}
	if body["end_time"] != "2026-10-19 00:00:00" {
		t.Fatalf("end_time without marker must pass unchanged: %v", body["end_time"])
	}
	if body["name"] != payload["name"] {
		t.Fatalf("only time fields are normalized: %v", body["name"])
	}
	if payload["start_time"] != "Sun Oct 18 2026 14:03:05 GMT+0800 (中国标准时间)" {
		t.Fatal("caller payload must not be mutated")
	}
}

func TestSend_UnparseableMarkedTimePassesThrough(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	c := newTestClient(srv.URL)

	const odd = "yesterday (中国标准时间)"
	if _, err := c.Send(context.Background(), Descriptor{URL: "/x", Payload: map[string]any{"start_time": odd}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := srv.last(t).Body["start_time"]; got != odd {
		t.Fatalf("expected value unchanged, got %v", got)
	}
}

func TestSend_BusinessFailure(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":0,"msg":"m","data":{"field":"phone"}}`)
	notices := &noticeRecorder{}
	c := newTestClient(srv.URL, WithNotifier(notices))

	var calls int
	var seen Envelope
	res, err := c.Send(context.Background(), Descriptor{
		URL: "/api/register",
		OnFailure: func(env Envelope) {
			calls++
			seen = env
		},
	})
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if !errors.Is(err, ErrBusinessFailure) {
		t.Fatalf("expected ErrBusinessFailure, got %v", err)
	}
	var be *BusinessError
	if !errors.As(err, &be) || be.Envelope.Message != "m" {
		t.Fatalf("expected BusinessError carrying envelope, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("OnFailure should run exactly once, ran %d", calls)
	}
	if seen.Code != 0 || !seen.HasCode || seen.Message != "m" || string(seen.Data) != `{"field":"phone"}` {
		t.Fatalf("OnFailure got %+v", seen)
	}
	if notices.count(NoticeFailure) != 1 {
		t.Fatal("expected one failure notice")
	}
}

func TestSend_AuthExpired(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":10001,"msg":"login again","data":{"x":1}}`)
	notices := &noticeRecorder{}
	c := newTestClient(srv.URL, WithNotifier(notices))

	res, err := c.Send(context.Background(), Descriptor{URL: "/api/home"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Outcome != OutcomeAuthExpired {
		t.Fatalf("expected auth_expired, got %s", res.Outcome)
	}
	if res.Envelope.Code != CodeAuthExpired || res.Envelope.Message != "login again" {
		t.Fatalf("expected full envelope, got %+v", res.Envelope)
	}
	if res.Data != nil {
		t.Fatal("auth expired result resolves the envelope, not data")
	}
	if notices.count(NoticeAuthExpired) != 1 {
		t.Fatal("expected one auth notice")
	}
}

func TestSend_AuthExpiredSuppressed(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":10001,"data":{"x":1}}`)
	notices := &noticeRecorder{}
	c := newTestClient(srv.URL, WithNotifier(notices))

	res, err := c.Send(context.Background(), Descriptor{URL: "/api/home", SuppressAuthNotice: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Outcome != OutcomeOK || string(res.Data) != `{"x":1}` {
		t.Fatalf("expected data with suppression, got %s %s", res.Outcome, res.Data)
	}
	if notices.count(NoticeAuthExpired) != 0 {
		t.Fatal("suppressed call must not notify")
	}
}

func TestSend_ReservedCodeResolvesData(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":2,"message":"partial","data":[1,2]}`)
	c := newTestClient(srv.URL)

	res, err := c.Send(context.Background(), Descriptor{URL: "/x"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(res.Data) != "[1,2]" || res.Envelope.Message != "partial" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSend_MissingCodeResolvesData(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":3}`)
	c := newTestClient(srv.URL)

	res, err := c.Send(context.Background(), Descriptor{URL: "/login"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Outcome != OutcomeOK || res.Data != nil {
		t.Fatalf("body without code resolves to empty data, got %+v", res)
	}
}

func TestSend_StatusFilter(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		wantErr bool
	}{
		{http.StatusOK, `{"code":1,"data":1}`, false},
		{http.StatusBadRequest, `{"code":1,"data":1}`, false},
		{http.StatusNotModified, ``, false},
		{http.StatusInternalServerError, `{"code":1,"data":1}`, true},
		{http.StatusNotFound, `not found`, true},
		{http.StatusUnauthorized, `{"code":10001}`, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body)
			c := newTestClient(srv.URL)
			_, err := c.Send(context.Background(), Descriptor{URL: "/x"})
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("status %d: unexpected error %v", tt.status, err)
				}
				return
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tt.status {
				t.Fatalf("status %d: expected StatusError, got %v", tt.status, err)
			}
			if !errors.Is(err, ErrTransport) {
				t.Fatalf("StatusError should match ErrTransport")
			}
		})
	}
}

func TestSend_MalformedBody(t *testing.T) {
	for _, body := range []string{`<html>oops</html>`, `{"code":1`, `null`} {
		srv := newTestServer(t, http.StatusOK, body)
		c := newTestClient(srv.URL)
		if _, err := c.Send(context.Background(), Descriptor{URL: "/x"}); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("body %q: expected ErrMalformedResponse, got %v", body, err)
		}
	}
}

func TestSend_NonObjectBodyResolvesEmpty(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"x"`, `42`} {
		srv := newTestServer(t, http.StatusOK, body)
		c := newTestClient(srv.URL)
		res, err := c.Send(context.Background(), Descriptor{URL: "/x"})
		if err != nil {
			t.Fatalf("body %q: Send: %v", body, err)
		}
		if res.Outcome != OutcomeOK || len(res.Data) != 0 {
			t.Fatalf("body %q: expected ok without data, got %s %s", body, res.Outcome, res.Data)
		}
	}
}

func TestSend_CodeComparesStrictly(t *testing.T) {
	tests := []struct {
		body    string
		wantErr error
		outcome Outcome
	}{
		{`{"code":0.0,"msg":"m"}`, ErrBusinessFailure, ""},
		{`{"code":10001.0}`, nil, OutcomeAuthExpired},
		{`{"code":1.0,"data":7}`, nil, OutcomeOK},
		{`{"code":"0","data":7}`, nil, OutcomeOK},
		{`{"code":0.5,"data":7}`, nil, OutcomeOK},
		{`{"code":1,"msg":42,"data":7}`, nil, OutcomeOK},
	}
	for _, tt := range tests {
		srv := newTestServer(t, http.StatusOK, tt.body)
		c := newTestClient(srv.URL, WithNotifier(&noticeRecorder{}))
		res, err := c.Send(context.Background(), Descriptor{URL: "/x"})
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("body %s: expected %v, got %v", tt.body, tt.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("body %s: Send: %v", tt.body, err)
		}
		if res.Outcome != tt.outcome {
			t.Fatalf("body %s: expected %s, got %s", tt.body, tt.outcome, res.Outcome)
		}
		if tt.outcome == OutcomeOK && string(res.Data) != "7" {
			t.Fatalf("body %s: expected data 7, got %s", tt.body, res.Data)
		}
	}
}

func TestSend_TokenHeaderReadAtDispatch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	var token atomic.Value
	token.Store("t-1")
	provider := tokenFunc(func(context.Context) (string, error) { return token.Load().(string), nil })
	c := newTestClient(srv.URL, WithTokenProvider(provider))

	ctx := context.Background()
	c.Send(ctx, Descriptor{URL: "/x", RequiresToken: true})
	if got := srv.last(t).Header.Get("XX-token"); got != "t-1" {
		t.Fatalf("expected t-1, got %q", got)
	}

	token.Store("t-2")
	c.Send(ctx, Descriptor{URL: "/x", RequiresToken: true})
	if got := srv.last(t).Header.Get("XX-token"); got != "t-2" {
		t.Fatalf("expected refreshed token t-2, got %q", got)
	}
}

type tokenFunc func(ctx context.Context) (string, error)

func (f tokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

func TestSend_TokenErrorDoesNotDispatch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	boom := errors.New("store down")
	c := newTestClient(srv.URL, WithTokenProvider(tokenFunc(func(context.Context) (string, error) { return "", boom })))

	if _, err := c.Send(context.Background(), Descriptor{URL: "/x", RequiresToken: true}); !errors.Is(err, boom) {
		t.Fatalf("expected token error, got %v", err)
	}
	if srv.count() != 0 {
		t.Fatal("request must not be dispatched without a token")
	}
}

func TestSend_GetEncodesQuery(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	c := newTestClient(srv.URL)

	_, err := c.Send(context.Background(), Descriptor{
		Method:  "get",
		URL:     "/users?page=1",
		Payload: map[string]any{"size": 20, "name": "a b"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	req := srv.last(t)
	if req.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", req.Method)
	}
	if req.Query != "page=1&name=a+b&size=20" {
		t.Fatalf("unexpected query %q", req.Query)
	}
	if req.Body != nil {
		t.Fatal("GET must not carry a body")
	}
}

func TestSend_ShowLoadingBracketsDispatch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	var shown, hidden int32
	ind := IndicatorFunc(func(context.Context) func() {
		atomic.AddInt32(&shown, 1)
		return func() { atomic.AddInt32(&hidden, 1) }
	})
	c := newTestClient(srv.URL, WithIndicator(ind))

	c.Send(context.Background(), Descriptor{URL: "/x"})
	if shown != 0 {
		t.Fatal("indicator shown without ShowLoading")
	}
	c.Send(context.Background(), Descriptor{URL: "/x", ShowLoading: true})
	if shown != 1 || hidden != 1 {
		t.Fatalf("expected show/hide once, got %d/%d", shown, hidden)
	}
}

func TestSend_TransportFailure(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	url := srv.URL
	srv.Close()

	c := newTestClient(url)
	_, err := c.Send(context.Background(), Descriptor{URL: "/x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var se *StatusError
	if errors.As(err, &se) {
		t.Fatal("network failure is not a StatusError")
	}
}

func TestSend_HonorsContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, Descriptor{URL: "/slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if outcomeLabel(nil, err) != "canceled" {
		t.Fatalf("unexpected outcome label %q", outcomeLabel(nil, err))
	}
}

func TestSend_ClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, WithCallLogger(logging.NewCallLogger(nil)))
	if _, err := c.Send(context.Background(), Descriptor{URL: "/slow"}); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error on timeout, got %v", err)
	}
}

func TestSend_OfflineDoesNotDispatch(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":1}`)
	notices := &noticeRecorder{}
	c := newTestClient(srv.URL, WithConnectivity(Always(false)), WithNotifier(notices))

	res, err := c.Send(context.Background(), Descriptor{URL: "/x"})
	if res != nil || !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v %v", res, err)
	}
	if srv.count() != 0 {
		t.Fatal("offline call must not dispatch")
	}
	if notices.count(NoticeOffline) != 1 {
		t.Fatal("expected one offline notice")
	}
}

func TestSend_ConcurrentOfflineFiresOneNotice(t *testing.T) {
	notices := &noticeRecorder{}
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := newTestClient("http://example.invalid",
		WithConnectivity(Always(false)),
		WithNotifier(notices),
		WithGuard(NewWindowGuard(time.Second, clock)),
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Send(context.Background(), Descriptor{URL: "/x"}); !errors.Is(err, ErrOffline) {
				t.Errorf("expected ErrOffline, got %v", err)
			}
		}()
	}
	wg.Wait()
	if got := notices.count(NoticeOffline); got != 1 {
		t.Fatalf("expected exactly one notice in the window, got %d", got)
	}

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	c.Send(context.Background(), Descriptor{URL: "/x"})
	if got := notices.count(NoticeOffline); got != 2 {
		t.Fatalf("expected a second notice after the window, got %d", got)
	}
}

func TestSend_BreakerOpensOnBadStatus(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, `bad gateway`)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorPct:     50,
		MinCalls:     2,
		Window:       time.Minute,
		OpenDuration: time.Minute,
	}, nil)
	c := newTestClient(srv.URL, WithBreakers(breakers))

	for i := 0; i < 2; i++ {
		var se *StatusError
		if _, err := c.Send(context.Background(), Descriptor{URL: "/x"}); !errors.As(err, &se) {
			t.Fatalf("call %d: expected StatusError, got %v", i, err)
		}
	}

	_, err := c.Send(context.Background(), Descriptor{URL: "/x"})
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, ErrTransport) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if got := srv.count(); got != 2 {
		t.Fatalf("open circuit should not dispatch, server saw %d", got)
	}
	if got := outcomeLabel(nil, err); got != "circuit_open" {
		t.Fatalf("unexpected outcome label %q", got)
	}
}

func TestSend_BreakerIgnoresBusinessFailure(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":0,"msg":"nope"}`)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorPct:     50,
		Window:       time.Minute,
		OpenDuration: time.Minute,
	}, nil)
	c := newTestClient(srv.URL, WithBreakers(breakers), WithNotifier(&noticeRecorder{}))

	for i := 0; i < 3; i++ {
		if _, err := c.Send(context.Background(), Descriptor{URL: "/x"}); !errors.Is(err, ErrBusinessFailure) {
			t.Fatalf("call %d: expected business failure, got %v", i, err)
		}
	}
	if got := srv.count(); got != 3 {
		t.Fatalf("business failures should not trip the breaker, server saw %d", got)
	}
}

func TestClientCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "abc%20def", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "lang", Value: "zh", Path: "/"})
		io.WriteString(w, `{"code":1}`)
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	if _, err := c.Send(context.Background(), Descriptor{URL: "/login"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if v, ok := c.Cookie("token"); !ok || v != "abc def" {
		t.Fatalf("expected unescaped token cookie, got %q %v", v, ok)
	}

	c.ClearCookies("token")
	if _, ok := c.Cookie("token"); ok {
		t.Fatal("token cookie should be expired")
	}
	if _, ok := c.Cookie("lang"); !ok {
		t.Fatal("other cookies should survive a named clear")
	}

	c.ClearCookies()
	if _, ok := c.Cookie("lang"); ok {
		t.Fatal("ClearCookies without names should expire everything")
	}
}

func TestClientCookiesRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sid"); err == nil {
			io.WriteString(w, `{"code":1,"data":"`+ck.Value+`"}`)
			return
		}
		io.WriteString(w, `{"code":1}`)
	}))
	defer srv.Close()

	first := newTestClient(srv.URL)
	first.SetCookies([]*http.Cookie{{Name: "sid", Value: "s-1"}})
	saved := first.Cookies()
	if len(saved) != 1 || saved[0].Name != "sid" || saved[0].Value != "s-1" {
		t.Fatalf("unexpected cookies %+v", saved)
	}

	second := newTestClient(srv.URL)
	second.SetCookies(saved)
	res, err := second.Send(context.Background(), Descriptor{URL: "/me"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(res.Data) != `"s-1"` {
		t.Fatalf("restored cookie should be sent, got %s", res.Data)
	}
}

func TestClientCookiesWithoutJar(t *testing.T) {
	c := newTestClient("http://api.example.com", WithDoer(doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unused")
	})))
	if _, ok := c.Cookie("token"); ok {
		t.Fatal("client without a jar has no cookies")
	}
	c.SetCookies([]*http.Cookie{{Name: "sid", Value: "x"}})
	if got := c.Cookies(); got != nil {
		t.Fatalf("client without a jar has no cookies, got %+v", got)
	}
	c.ClearCookies()
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestResolveURL(t *testing.T) {
	c := newTestClient("http://api.example.com/v1/")
	tests := map[string]string{
		"/users":                    "http://api.example.com/v1/users",
		"users":                     "http://api.example.com/v1/users",
		"https://other.example.com": "https://other.example.com",
	}
	for in, want := range tests {
		if got := c.resolve(in); got != want {
			t.Fatalf("resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnvelopeMessageAlias(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"code":0,"message":"alias"}`), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Message != "alias" || !env.HasCode {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if err := json.Unmarshal([]byte(`{"code":0,"msg":"primary","message":"alias"}`), &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Message != "primary" {
		t.Fatalf("msg should win over message, got %q", env.Message)
	}
}

func TestCallLogRecordsOutcome(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"code":0,"msg":"nope"}`)
	var buf strings.Builder
	var mu sync.Mutex
	c := New(Config{BaseURL: srv.URL}, WithCallLogger(logging.NewCallLogger(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}))))

	c.Send(context.Background(), Descriptor{URL: "/x"})
	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if !strings.Contains(out, "business_failure") || !strings.Contains(out, "✗") {
		t.Fatalf("unexpected call log %q", out)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
