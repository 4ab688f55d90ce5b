package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Envelope codes. Any other code is reserved and resolves like success.
const (
	CodeFailure     = 0
	CodeSuccess     = 1
	CodeAuthExpired = 10001
)

// Envelope is the {code, msg, data} wrapper of every remote response.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"msg,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`

	// HasCode is false when the body carried no integral numeric "code".
	// Such bodies never match CodeFailure or CodeAuthExpired.
	HasCode bool `json:"-"`
}

// UnmarshalJSON accepts "message" as an alias for "msg". Codes compare
// strictly: "0" or 1.5 are not codes, while 1.0 is the code 1.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var wire struct {
		Code    json.RawMessage `json:"code"`
		Msg     json.RawMessage `json:"msg"`
		Message json.RawMessage `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*e = Envelope{Data: wire.Data}

	var code float64
	if len(wire.Code) > 0 && json.Unmarshal(wire.Code, &code) == nil &&
		code == math.Trunc(code) && math.Abs(code) <= math.MaxInt32 {
		e.Code = int(code)
		e.HasCode = true
	}

	switch {
	case len(wire.Msg) > 0 && !isNull(wire.Msg):
		e.Message = text(wire.Msg)
	case len(wire.Message) > 0 && !isNull(wire.Message):
		e.Message = text(wire.Message)
	}
	return nil
}

// text returns a JSON string's value, or the JSON itself for other values.
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Decode unmarshals Data into dst.
func (e Envelope) Decode(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("envelope has no data")
	}
	return json.Unmarshal(e.Data, dst)
}

func (e Envelope) isFailure() bool { return e.HasCode && e.Code == CodeFailure }

func (e Envelope) isAuthExpired() bool { return e.HasCode && e.Code == CodeAuthExpired }
