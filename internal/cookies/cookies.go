// Package cookies reads and expires cookies held in an http.CookieJar.
package cookies

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// NewJar returns a cookie jar that respects the public suffix list.
func NewJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Get returns the unescaped value of the cookie name visible for u.
func Get(jar http.CookieJar, u *url.URL, name string) (string, bool) {
	for _, c := range jar.Cookies(u) {
		if c.Name != name {
			continue
		}
		if v, err := url.QueryUnescape(c.Value); err == nil {
			return v, true
		}
		return c.Value, true
	}
	return "", false
}

// Expire removes each named cookie for u's host and for its registrable
// domain, so both host-only and domain-wide cookies are cleared.
func Expire(jar http.CookieJar, u *url.URL, names ...string) {
	host := u.Hostname()
	domains := []string{""}
	if net.ParseIP(host) == nil && host != "" {
		domains = append(domains, host)
		if root, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && root != host {
			domains = append(domains, root)
		}
	}

	epoch := time.Unix(0, 0)
	var expired []*http.Cookie
	for _, name := range names {
		for _, d := range domains {
			expired = append(expired, &http.Cookie{
				Name:    name,
				Value:   "0",
				Path:    "/",
				Domain:  d,
				Expires: epoch,
				MaxAge:  -1,
			})
		}
	}
	if len(expired) > 0 {
		jar.SetCookies(u, expired)
	}
}

// ExpireAll expires every cookie visible for u.
func ExpireAll(jar http.CookieJar, u *url.URL) {
	var names []string
	seen := make(map[string]bool)
	for _, c := range jar.Cookies(u) {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	Expire(jar, u, names...)
}
