package apiclient

import (
	"context"

	"github.com/oriys/courier/internal/logging"
)

// OfflineMessage is the text of the offline notice.
const OfflineMessage = "network unavailable or unstable, switch networks and try again"

// NoticeKind identifies a user-facing notice.
type NoticeKind int

const (
	NoticeOffline NoticeKind = iota
	NoticeFailure
	NoticeAuthExpired
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeOffline:
		return "offline"
	case NoticeFailure:
		return "failure"
	case NoticeAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// Notice is shown to the user by a Notifier.
type Notice struct {
	Kind     NoticeKind
	Message  string
	Envelope *Envelope
}

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// LogNotifier writes notices to the operational logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notice) {
	logging.Op().Warn("notice", "kind", n.Kind.String(), "message", n.Message)
}

// Indicator shows a loading indicator. Show returns the function that hides it.
type Indicator interface {
	Show(ctx context.Context) func()
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func(ctx context.Context) func()

func (f IndicatorFunc) Show(ctx context.Context) func() { return f(ctx) }

type nopIndicator struct{}

func (nopIndicator) Show(context.Context) func() { return func() {} }
