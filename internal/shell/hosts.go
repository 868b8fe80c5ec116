package shell

import (
	"net"
	"net/http"
	"strings"
)

// allowedHosts rejects requests for hosts outside the list. Entries that
// start with "." match the bare domain and any subdomain. An empty list
// allows everything.
func allowedHosts(hosts []string) func(http.Handler) http.Handler {
	patterns := make([]string, 0, len(hosts))
	for _, host := range hosts {
		if trimmed := strings.ToLower(strings.TrimSpace(host)); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return func(next http.Handler) http.Handler {
		if len(patterns) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(patterns, r.Host) {
				writeError(w, http.StatusForbidden, "host not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(patterns []string, hostport string) bool {
	host := strings.ToLower(hostport)
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = strings.ToLower(h)
	}
	host = strings.TrimSuffix(host, ".")
	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, ".") {
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}
