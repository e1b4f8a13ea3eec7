// Package security filters scanner traffic and bounds request bodies.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// Config holds the configuration for security middleware
type Config struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// probePrefixes are paths that only scanners ask for
var probePrefixes = []string{
	"/wp-", "/xmlrpc.php", "/.git/", "/.env", "/.htaccess", "/.htpasswd", "/.aws",
	"/phpmyadmin", "/phpinfo", "/cgi-bin/", "/web-inf/", "/server-status",
	"/admin/", "/shell", "/config.", "/.php", "/actuator",
}

// probeFragments are traversal and injection markers checked anywhere in
// the path and query
var probeFragments = []string{"../", "..\\", "..%2f", "..%5c", "%2e%2e", "%00", "\x00"}

// FilterMiddleware answers known probes with a bare 400.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Suspicious(r.URL) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "Invalid request", "code": "BAD_REQUEST"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Suspicious reports whether u looks like scanner traffic. The relay's
// url parameter is not inspected, since it legitimately carries paths.
func Suspicious(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	if slices.ContainsFunc(probePrefixes, func(p string) bool { return strings.HasPrefix(path, p) }) {
		return true
	}

	candidates := []string{path, strings.ToLower(u.EscapedPath())}
	if decoded, err := url.PathUnescape(u.EscapedPath()); err == nil {
		candidates = append(candidates, strings.ToLower(decoded))
	}
	for k, vs := range u.Query() {
		if k == "url" {
			continue
		}
		for _, v := range vs {
			candidates = append(candidates, strings.ToLower(v))
		}
	}

	for _, c := range candidates {
		if slices.ContainsFunc(probeFragments, func(f string) bool { return strings.Contains(c, f) }) {
			return true
		}
	}
	return false
}
