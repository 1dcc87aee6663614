package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/store"
)

const lockKeyPrefix = "lock:"

// LockoutConfig holds configuration for the lockout tracker.
type LockoutConfig struct {
	Duration time.Duration
	Clock    func() time.Time
}

// Tracker escalates repeated failures to a timed lockout.
type Tracker struct {
	limiter *Limiter
	kv      store.Store
	config  LockoutConfig
	now     func() time.Time
}

// NewTracker wraps limiter with a lockout of cfg.Duration. Lock records share the
// limiter's store.
func NewTracker(limiter *Limiter, cfg LockoutConfig) (*Tracker, error) {
	if limiter == nil {
		return nil, fmt.Errorf("%w: limiter required", ErrInvalidConfig)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: lockout duration must be positive", ErrInvalidConfig)
	}
	if cfg.Clock == nil {
		cfg.Clock = limiter.now
	}
	return &Tracker{limiter: limiter, kv: limiter.kv, config: cfg, now: cfg.Clock}, nil
}

// Limiter returns the underlying attempt limiter.
func (t *Tracker) Limiter() *Limiter {
	return t.limiter
}

// RecordAttempt records the outcome of an attempt by id.
//
// Success clears the attempt counter. A failure while locked returns reason.Locked
// without counting. Otherwise the failure is counted and, once the budget is
// exhausted, a lockout is stored and reason.Locked returned with the result.
func (t *Tracker) RecordAttempt(ctx context.Context, id string, success bool) (Result, error) {
	if id == "" {
		return Result{}, ErrEmptyKey
	}
	if success {
		if err := t.limiter.Reset(ctx, id); err != nil {
			return Result{}, err
		}
		return Result{Allowed: true, Remaining: t.limiter.config.MaxAttempts}, nil
	}

	until, locked, err := t.LockedUntil(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if locked {
		return t.lockedResult(until), reason.Locked
	}

	res, err := t.limiter.Check(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if res.Allowed {
		return res, nil
	}

	until = t.now().Add(t.config.Duration)
	value := []byte(strconv.FormatInt(until.UnixNano(), 10))
	if err := t.kv.Set(ctx, lockKeyPrefix+id, value, t.config.Duration); err != nil {
		return Result{}, err
	}
	return t.lockedResult(until), reason.Locked
}

// IsLocked reports whether id is currently locked out.
func (t *Tracker) IsLocked(ctx context.Context, id string) (bool, error) {
	_, locked, err := t.LockedUntil(ctx, id)
	return locked, err
}

// LockedUntil returns the lockout expiry for id. Expired records are deleted.
func (t *Tracker) LockedUntil(ctx context.Context, id string) (time.Time, bool, error) {
	if id == "" {
		return time.Time{}, false, ErrEmptyKey
	}
	raw, err := t.kv.Get(ctx, lockKeyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	until := time.Unix(0, nanos)
	if err != nil || !t.now().Before(until) {
		if derr := t.kv.Delete(ctx, lockKeyPrefix+id); derr != nil {
			return time.Time{}, false, derr
		}
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// Unlock clears both the lockout and the attempt counter for id.
func (t *Tracker) Unlock(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyKey
	}
	return t.kv.Delete(ctx, lockKeyPrefix+id, t.limiter.config.Prefix+id)
}

func (t *Tracker) lockedResult(until time.Time) Result {
	return Result{
		Allowed:    false,
		ResetAt:    until,
		RetryAfter: ceilSeconds(until.Sub(t.now())),
	}
}
