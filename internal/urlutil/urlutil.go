// Package urlutil rewrites query strings and resolves asset URLs.
package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// ChangeArg sets arg=val in rawURL's query, keeping the order of the other
// parameters. An existing arg is replaced in place; a new one is appended.
func ChangeArg(rawURL, arg, val string) string {
	base, query, fragment := split(rawURL)
	enc := url.QueryEscape(arg) + "=" + url.QueryEscape(val)

	var parts []string
	replaced := false
	for _, kv := range strings.Split(query, "&") {
		if kv == "" {
			continue
		}
		key := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key = kv[:i]
		}
		if k, err := url.QueryUnescape(key); err == nil && k == arg {
			if !replaced {
				parts = append(parts, enc)
				replaced = true
			}
			continue
		}
		parts = append(parts, kv)
	}
	if !replaced {
		parts = append(parts, enc)
	}

	out := base + "?" + strings.Join(parts, "&")
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

// QueryMap returns the query parameters of rawURL. Repeated keys keep the
// last value.
func QueryMap(rawURL string) map[string]string {
	_, query, _ := split(rawURL)
	out := make(map[string]string)
	values, _ := url.ParseQuery(query)
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[len(vs)-1]
		}
	}
	return out
}

// FileType returns the lower-cased extension of the path in p without the
// dot, or "" when there is none.
func FileType(p string) string {
	base, _, _ := split(p)
	ext := path.Ext(base)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// ResolveFileURL returns p unchanged when it is already absolute and
// otherwise joins it onto base.
func ResolveFileURL(base, p string) string {
	if u, err := url.Parse(p); err == nil && u.IsAbs() {
		return p
	}
	if strings.HasPrefix(p, "//") || base == "" {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

func split(raw string) (base, query, fragment string) {
	base = raw
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i+1:]
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base, query = base[:i], base[i+1:]
	}
	return base, query, fragment
}
