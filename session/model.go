package session

import (
	"time"

	"github.com/MrEthical07/authkit/internal"
)

// Metadata describes the client presenting a session.
//
// Only UserAgent and AcceptLanguage contribute to the fingerprint. IP and
// Attributes are recorded for display and audit.
type Metadata struct {
	UserAgent      string
	AcceptLanguage string
	IP             string
	Attributes     map[string]string
}

// Fingerprint returns the SHA-256 binding of the stable client fields.
func (m Metadata) Fingerprint() [32]byte {
	return internal.Fingerprint(m.UserAgent, m.AcceptLanguage)
}

// Session is a server-side session record.
type Session struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	LastActivity time.Time
	Fingerprint  [32]byte
	Metadata     Metadata
}

// Age reports how long the session has existed at now.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Idle reports how long the session has been inactive at now.
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
