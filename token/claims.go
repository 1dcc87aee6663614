package token

import (
	"encoding/json"
	"math"
	"time"
)

// Claims is a verified token payload.
type Claims map[string]any

// String returns the string claim at key, or "".
func (c Claims) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Subject returns the sub claim.
func (c Claims) Subject() string { return c.String("sub") }

// ID returns the jti claim.
func (c Claims) ID() string { return c.String("jti") }

// IssuedAt returns the iat claim, or the zero time.
func (c Claims) IssuedAt() time.Time { return c.time("iat") }

// ExpiresAt returns the exp claim, or the zero time.
func (c Claims) ExpiresAt() time.Time { return c.time("exp") }

func (c Claims) time(key string) time.Time {
	var secs float64
	switch v := c[key].(type) {
	case float64:
		secs = v
	case int64:
		secs = float64(v)
	case int:
		secs = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}
		}
		secs = f
	default:
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9))
}
