package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline is returned without dispatching when Connectivity reports offline.
	ErrOffline = errors.New("apiclient: network unavailable")
	// ErrTransport covers network failures and statuses outside 200/304/400.
	ErrTransport = errors.New("apiclient: transport failure")
	// ErrCircuitOpen is returned without dispatching while the target host's
	// breaker is open. It matches ErrTransport.
	ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrTransport)
	// ErrBusinessFailure is matched by *BusinessError (envelope code 0).
	ErrBusinessFailure = errors.New("apiclient: business failure")
	// ErrMalformedResponse is returned when an accepted body is not an envelope.
	ErrMalformedResponse = errors.New("apiclient: malformed response")
)

// StatusError is returned when the server answers with a status the client
// does not interpret.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("apiclient: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("apiclient: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// BusinessError carries the envelope of a code 0 response.
type BusinessError struct {
	Envelope Envelope
}

func (e *BusinessError) Error() string {
	if e.Envelope.Message == "" {
		return ErrBusinessFailure.Error()
	}
	return fmt.Sprintf("%s: %s", ErrBusinessFailure.Error(), e.Envelope.Message)
}

func (e *BusinessError) Unwrap() error { return ErrBusinessFailure }
