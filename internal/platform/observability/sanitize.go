package observability

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	routeLimit      = 180
	methodLimit     = 10
	sessionIDPrefix = 12
)

// clip strips control runes and keeps at most limit runes so request data cannot forge log lines.
func clip(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

// SanitizeRoute returns a log-safe route pattern; unmatched requests log as "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, routeLimit)
}

// SanitizeMethod returns a log-safe, upper-cased HTTP method.
func SanitizeMethod(method string) string {
	return strings.ToUpper(clip(method, methodLimit))
}

// SanitizeSessionID keeps a short prefix of the session id. Full cookie values never reach the logs.
func SanitizeSessionID(id string) string {
	return clip(id, sessionIDPrefix)
}
