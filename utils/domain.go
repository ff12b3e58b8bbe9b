// Package utils holds request helpers shared by the HTTP host.
package utils

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// CookieDomain returns the registrable domain the browser reached us from, taken from the
// Origin header, then Referer, then Host. It is empty for IP addresses and single-label hosts,
// where a Domain attribute would make the browser drop the cookie.
func CookieDomain(r *http.Request) string {
	host := requestHost(r)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	// last two labels: "dev.example.com" => "example.com"
	return strings.Join(parts[len(parts)-2:], ".")
}

func requestHost(r *http.Request) string {
	for _, v := range []string{r.Header.Get("Origin"), r.Header.Get("Referer")} {
		if v == "" || v == "null" {
			continue
		}
		if !strings.Contains(v, "://") {
			v = "https://" + v
		}
		if u, err := url.Parse(v); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}
