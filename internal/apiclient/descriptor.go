package apiclient

import (
	"net/http"
	"strings"
)

// Descriptor describes one API call.
type Descriptor struct {
	Method  string
	URL     string
	Payload map[string]any

	// ShowLoading brackets the dispatch with the client's Indicator.
	ShowLoading bool
	// RequiresToken attaches the session token header.
	RequiresToken bool
	// SuppressAuthNotice makes a 10001 response resolve to its data
	// like any other non-failure code.
	SuppressAuthNotice bool

	// OnFailure runs once with the full envelope before a code 0 failure
	// is returned.
	OnFailure func(Envelope)
}

func (d Descriptor) withDefaults() Descriptor {
	if d.Method == "" {
		d.Method = http.MethodPost
	}
	d.Method = strings.ToUpper(d.Method)
	if d.Payload == nil {
		d.Payload = map[string]any{}
	}
	return d
}

// hasBody reports whether the payload travels in the request body rather
// than the query string.
func (d Descriptor) hasBody() bool {
	switch d.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return false
	}
	return true
}
