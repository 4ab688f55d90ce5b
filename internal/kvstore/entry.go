package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Kind classifies the result of a Read.
type Kind int

const (
	KindEmpty   Kind = iota // nothing stored, or an empty string
	KindMissing             // stored entry was expired or falsy and has been deleted
	KindRaw                 // stored string is not an envelope; returned unchanged
	KindValue               // live envelope with a value
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMissing:
		return "missing"
	case KindRaw:
		return "raw"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// ErrNoValue is returned by Value.Decode for empty and missing results.
var ErrNoValue = errors.New("kvstore: no value")

// Value is the result of a Read.
type Value struct {
	kind Kind
	raw  string
	data json.RawMessage
}

// Kind reports what the read found.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether nothing was stored under the key.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsMissing reports whether the entry was expired (and has been deleted).
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Found reports whether the read produced a usable value.
func (v Value) Found() bool { return v.kind == KindRaw || v.kind == KindValue }

// JSON returns the envelope's value as raw JSON. It is nil unless Kind is KindValue.
func (v Value) JSON() json.RawMessage { return v.data }

// String returns the value as text. Raw records are returned as stored,
// string values are unquoted, other values are returned as JSON text.
func (v Value) String() string {
	switch v.kind {
	case KindRaw:
		return v.raw
	case KindValue:
		var s string
		if err := json.Unmarshal(v.data, &s); err == nil {
			return s
		}
		return string(v.data)
	default:
		return ""
	}
}

// Decode unmarshals the value into dst. A raw record decodes into *string
// as-is, and into anything else as JSON.
func (v Value) Decode(dst any) error {
	switch v.kind {
	case KindValue:
		return json.Unmarshal(v.data, dst)
	case KindRaw:
		if s, ok := dst.(*string); ok {
			*s = v.raw
			return nil
		}
		return json.Unmarshal([]byte(v.raw), dst)
	default:
		return ErrNoValue
	}
}

// envelope is the stored wire form.
type envelope struct {
	Value   any   `json:"value"`
	Expires int64 `json:"expires"`
}

func encodeEnvelope(value any, expiresMs int64) (string, error) {
	data, err := json.Marshal(envelope{Value: value, Expires: expiresMs})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeResult is what decodeRecord concluded about a stored string.
type decodeResult struct {
	value Value
	evict bool
}

// decodeRecord classifies a stored string at time nowMs.
//
// An envelope is a JSON object whose only keys are "value" and "expires",
// with "expires" a number or null. Anything else that parses as JSON is a
// raw record, except the falsy literals (null, false, 0, "") which are
// treated as a dead entry and evicted.
func decodeRecord(raw string, nowMs int64) decodeResult {
	if raw == "" {
		return decodeResult{value: Value{kind: KindEmpty}}
	}

	var probe any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return decodeResult{value: Value{kind: KindRaw, raw: raw}}
	}
	if falsy(probe) {
		return decodeResult{value: Value{kind: KindMissing}, evict: true}
	}
	if _, ok := probe.(map[string]any); !ok {
		return decodeResult{value: Value{kind: KindRaw, raw: raw}}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return decodeResult{value: Value{kind: KindRaw, raw: raw}}
	}
	for k := range fields {
		if k != "value" && k != "expires" {
			return decodeResult{value: Value{kind: KindRaw, raw: raw}}
		}
	}

	if exp, ok := fields["expires"]; ok && !isNull(exp) {
		var expires float64
		if err := json.Unmarshal(exp, &expires); err != nil {
			return decodeResult{value: Value{kind: KindRaw, raw: raw}}
		}
		if expires < float64(nowMs) {
			return decodeResult{value: Value{kind: KindMissing}, evict: true}
		}
	}

	val, ok := fields["value"]
	if !ok || isNull(val) {
		return decodeResult{value: Value{kind: KindRaw, raw: raw}}
	}
	return decodeResult{value: Value{kind: KindValue, data: val}}
}

func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case float64:
		return t == 0
	case string:
		return t == ""
	}
	return false
}

func isNull(m json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(m), []byte("null"))
}
