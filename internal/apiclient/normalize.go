package apiclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/oriys/courier/internal/datefmt"
	"github.com/oriys/courier/internal/logging"
)

// DefaultTimeMarker identifies a date value that still carries a browser
// Date.toString() rendering.
const DefaultTimeMarker = "中国标准时间"

var timeFields = []string{"start_time", "end_time"}

// normalizePayload returns a copy of payload with marker-bearing time fields
// rewritten to "2006-01-02 15:04:05" in loc. payload itself is not modified.
func normalizePayload(payload map[string]any, marker string, loc *time.Location) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	if marker == "" {
		return out
	}
	for _, field := range timeFields {
		s, ok := out[field].(string)
		if !ok || !strings.Contains(s, marker) {
			continue
		}
		t, err := datefmt.ParseJSDate(s)
		if err != nil {
			logging.Op().Warn("payload time not normalized", "field", field, "error", err)
			continue
		}
		out[field] = datefmt.FormatUnix(t.Unix(), loc)
	}
	return out
}

// encodeQuery renders payload as a query string. Scalars are formatted
// directly and composite values as JSON.
func encodeQuery(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch v := payload[k].(type) {
		case nil:
			q.Set(k, "")
		case string:
			q.Set(k, v)
		case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
			q.Set(k, fmt.Sprint(v))
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("encode query %q: %w", k, err)
			}
			q.Set(k, string(b))
		}
	}
	return q.Encode(), nil
}
