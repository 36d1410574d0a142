package observability

import (
	"strings"
	"unicode"
)

// Caps for values copied from requests into log fields.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxUserIDLen = 64
)

func logSafe(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route pattern for logging. An empty route logs as "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return logSafe(route, maxRouteLen)
}

// SanitizeMethod cleans an HTTP method for logging.
func SanitizeMethod(method string) string {
	return logSafe(strings.ToUpper(method), maxMethodLen)
}

// SanitizeUserID caps user identifiers written to logs.
func SanitizeUserID(uid string) string {
	return logSafe(uid, maxUserIDLen)
}
