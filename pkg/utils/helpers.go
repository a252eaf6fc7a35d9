package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

var intCast = regexp.MustCompile(`^([+-]?\d*)(?:\.(\d*))?$`)

// ParseInt32 coerces a text field to a 32-bit integer the way a lenient SQL cast does:
// surrounding whitespace is ignored, a decimal part is dropped, and
// anything else (exponents, garbage, out of range) reports ok=false.
func ParseInt32(s string) (v int32, ok bool) {
	m := intCast.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}

	whole := m[1]
	if strings.TrimLeft(whole, "+-") == "" {
		if m[2] == "" {
			return 0, false
		}
		whole = "0"
	}

	i, err := strconv.ParseInt(whole, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(i), true
}

// NullIfEmpty returns nil for an empty field
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TrimOr trims v and falls back to def when nothing is left
func TrimOr(v *string, def string) string {
	if v == nil {
		return def
	}
	if t := strings.TrimSpace(*v); t != "" {
		return t
	}
	return def
}
