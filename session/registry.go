package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/store"
)

const (
	sessionKeyPrefix = "sess:"
	userKeyPrefix    = "sessu:"

	// Expired records linger so Validate can report why they stopped working.
	expiredRetention = time.Minute

	maxTouchAttempts = 4
)

// ErrContention is returned when Validate keeps losing the race to update a
// session that other requests are touching at the same time.
var ErrContention = errors.New("session: too much concurrent activity")

// Config tunes session lifetimes and identifier entropy.
type Config struct {
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	IDBytes         int
	Clock           func() time.Time
}

// DefaultConfig returns 30 minute idle and 24 hour absolute timeouts with 256-bit
// session IDs.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:     30 * time.Minute,
		AbsoluteTimeout: 24 * time.Hour,
		IDBytes:         32,
	}
}

// Registry creates, validates and destroys sessions.
type Registry struct {
	kv     store.Store
	config Config
	now    func() time.Time
}

// NewRegistry creates a registry over kv. Zero config fields take their defaults.
func NewRegistry(kv store.Store, cfg Config) (*Registry, error) {
	if kv == nil {
		return nil, errors.New("session: store required")
	}
	def := DefaultConfig()
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.AbsoluteTimeout == 0 {
		cfg.AbsoluteTimeout = def.AbsoluteTimeout
	}
	if cfg.IDBytes == 0 {
		cfg.IDBytes = def.IDBytes
	}
	if cfg.IdleTimeout < 0 || cfg.AbsoluteTimeout < 0 {
		return nil, errors.New("session: timeouts must be positive")
	}
	if cfg.IdleTimeout > cfg.AbsoluteTimeout {
		return nil, errors.New("session: IdleTimeout must be <= AbsoluteTimeout")
	}
	if cfg.IDBytes < internal.MinRandomBytes {
		return nil, fmt.Errorf("session: IDBytes must be >= %d", internal.MinRandomBytes)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Registry{kv: kv, config: cfg, now: cfg.Clock}, nil
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.config
}

// Create starts a session for userID bound to md and returns its ID.
func (r *Registry) Create(ctx context.Context, userID string, md Metadata) (string, error) {
	if userID == "" {
		return "", errors.New("session: user id required")
	}
	id, err := internal.RandomToken(r.config.IDBytes)
	if err != nil {
		return "", err
	}

	now := r.now()
	s := &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		Fingerprint:  md.Fingerprint(),
		Metadata:     md,
	}
	if err := r.save(ctx, s, now); err != nil {
		return "", err
	}
	if err := r.kv.AddMember(ctx, userKeyPrefix+userID, id, r.config.AbsoluteTimeout+expiredRetention); err != nil {
		return "", err
	}
	return id, nil
}

// Validate checks the session against its lifetimes and the presenting client.
// On success the idle clock is reset and the refreshed session returned. Any
// failure other than NotFound destroys the session.
//
// The touch is a compare-and-swap against the record that was checked, so a
// session destroyed or regenerated concurrently is never written back.
func (r *Registry) Validate(ctx context.Context, id string, md Metadata) (*Session, error) {
	for range maxTouchAttempts {
		s, raw, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		now := r.now()
		if failure := r.check(s, md, now); failure != reason.None {
			if err := r.kv.Delete(ctx, sessionKeyPrefix+id); err != nil {
				return nil, err
			}
			if err := r.kv.RemoveMember(ctx, userKeyPrefix+s.UserID, id); err != nil {
				return nil, err
			}
			return nil, failure
		}

		s.LastActivity = now
		data, err := Encode(s)
		if err != nil {
			return nil, err
		}
		swapped, err := r.kv.CompareAndSwap(ctx, sessionKeyPrefix+id, raw, data, r.ttl(s, now))
		if err != nil {
			return nil, err
		}
		if swapped {
			return s, nil
		}
		// Changed underneath us: reload, so a destroyed session reports NotFound
		// and a concurrent touch is re-checked.
	}
	return nil, ErrContention
}

func (r *Registry) check(s *Session, md Metadata, now time.Time) reason.Reason {
	switch {
	case s.Age(now) > r.config.AbsoluteTimeout:
		return reason.AbsoluteExpired
	case s.Idle(now) > r.config.IdleTimeout:
		return reason.IdleExpired
	}
	fp := md.Fingerprint()
	if subtle.ConstantTimeCompare(fp[:], s.Fingerprint[:]) != 1 {
		return reason.Hijacked
	}
	return reason.None
}

// Get returns the stored session without validating or touching it.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	s, _, err := r.load(ctx, id)
	return s, err
}

// Regenerate replaces oldID with a fresh session for the same user, bound to md.
// Used after privilege changes to defeat session fixation.
func (r *Registry) Regenerate(ctx context.Context, oldID string, md Metadata) (string, error) {
	if oldID == "" {
		return "", reason.NotFound
	}
	raw, err := r.kv.Take(ctx, sessionKeyPrefix+oldID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", reason.NotFound
		}
		return "", err
	}
	old, err := Decode(raw)
	if err != nil {
		return "", err
	}
	if err := r.kv.RemoveMember(ctx, userKeyPrefix+old.UserID, oldID); err != nil {
		return "", err
	}
	return r.Create(ctx, old.UserID, md)
}

// Destroy ends a session. Unknown IDs are ignored.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	raw, err := r.kv.Take(ctx, sessionKeyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if s, err := Decode(raw); err == nil {
		return r.kv.RemoveMember(ctx, userKeyPrefix+s.UserID, id)
	}
	return nil
}

// DestroyAllForUser ends every session owned by userID and returns how many were
// indexed.
func (r *Registry) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := r.kv.Members(ctx, userKeyPrefix+userID)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKeyPrefix+userID)
	if err := r.kv.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListForUser returns the live sessions of userID, oldest first. Index entries
// whose record has gone are pruned.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := r.kv.Members(ctx, userKeyPrefix+userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, _, err := r.load(ctx, id)
		if errors.Is(err, reason.NotFound) {
			_ = r.kv.RemoveMember(ctx, userKeyPrefix+userID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Registry) load(ctx context.Context, id string) (*Session, []byte, error) {
	if id == "" {
		return nil, nil, reason.NotFound
	}
	raw, err := r.kv.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, reason.NotFound
		}
		return nil, nil, err
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return s, raw, nil
}

// save persists s until its absolute deadline plus the retention margin.
func (r *Registry) save(ctx context.Context, s *Session, now time.Time) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, sessionKeyPrefix+s.ID, data, r.ttl(s, now))
}

func (r *Registry) ttl(s *Session, now time.Time) time.Duration {
	return r.config.AbsoluteTimeout - s.Age(now) + expiredRetention
}
