// Package httputil holds small HTTP helpers shared by gateway handlers.
package httputil

import (
	"net/http"
	"strconv"
	"strings"
)

// Default and maximum page sizes for list endpoints.
const (
	DefaultListLimit = 10
	MaxListLimit     = 150
)

// GetClientIP extracts the client IP, preferring the first X-Forwarded-For hop,
// then X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// ParseIntParam parses an integer parameter, returning defaultVal when s is
// empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// Window is a limit/offset pair read from a list request.
type Window struct {
	Limit  int
	Offset int
}

// ParseWindow reads limit and offset from the query string, clamping limit to
// (0, MaxListLimit] and offset to >= 0.
func ParseWindow(r *http.Request) Window {
	q := r.URL.Query()
	return NewWindow(q.Get("limit"), q.Get("offset"))
}

// NewWindow builds a Window from raw limit and offset values with the same
// clamping as ParseWindow.
func NewWindow(rawLimit, rawOffset string) Window {
	limit := ParseIntParam(rawLimit, DefaultListLimit)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := ParseIntParam(rawOffset, 0)
	if offset < 0 {
		offset = 0
	}
	return Window{Limit: limit, Offset: offset}
}
