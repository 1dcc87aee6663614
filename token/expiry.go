package token

import (
	"strconv"
	"strings"
	"time"
)

var expiryUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseExpiry parses a compact lifetime: a non-negative integer followed by one of
// s, m, h or d ("30s", "15m", "7d"). Anything else returns fallback.
func ParseExpiry(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return fallback
	}
	unit, ok := expiryUnits[s[len(s)-1]]
	if !ok {
		return fallback
	}
	digits := s[:len(s)-1]
	if digits[0] == '+' || digits[0] == '-' {
		return fallback
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 || n > int64(1<<62)/int64(unit) {
		return fallback
	}
	return time.Duration(n) * unit
}
