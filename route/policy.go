// Package route decides where a page load ends up: it classifies paths, replays deep links
// recovered by the static-hosting entry shim and keeps anonymous visitors off protected pages.
package route

import "strings"

// PublicMarkers are the substrings that make a path public. Matching is plain containment, so
// query-string variants and nested paths count too.
var PublicMarkers = []string{"/login", "/register", "/verify", "/recovery", "/404"}

// IsProtected reports whether path needs a signed-in user.
func IsProtected(path string) bool {
	for _, m := range PublicMarkers {
		if strings.Contains(path, m) {
			return false
		}
	}
	return true
}
