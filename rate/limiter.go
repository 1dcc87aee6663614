package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authkit/store"
)

// Config holds limiter tuning parameters.
type Config struct {
	Window      time.Duration
	MaxAttempts int
	// Prefix namespaces counter keys so several limiters can share a store.
	Prefix string
	Clock  func() time.Time
}

// DefaultConfig allows 5 attempts per 15 minutes.
func DefaultConfig() Config {
	return Config{Window: 15 * time.Minute, MaxAttempts: 5, Prefix: "rl:"}
}

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is zero when Allowed, otherwise the wait rounded up to whole
	// seconds.
	RetryAfter time.Duration
}

// RetryAfterSeconds is RetryAfter as an integer, suitable for a Retry-After header.
func (r Result) RetryAfterSeconds() int64 {
	return int64(r.RetryAfter / time.Second)
}

// Limiter counts attempts per key within a fixed window.
type Limiter struct {
	kv     store.Store
	config Config
	now    func() time.Time
}

// New creates a Limiter over kv.
func New(kv store.Store, cfg Config) (*Limiter, error) {
	if kv == nil {
		return nil, fmt.Errorf("%w: store required", ErrInvalidConfig)
	}
	if cfg.Window <= 0 || cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: window and max attempts must be positive", ErrInvalidConfig)
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Limiter{kv: kv, config: cfg, now: cfg.Clock}, nil
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Check records one attempt against key and reports whether it fits the budget.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}
	counter, err := l.kv.Increment(ctx, l.config.Prefix+key, l.config.Window)
	if err != nil {
		return Result{}, err
	}

	max := int64(l.config.MaxAttempts)
	res := Result{
		Allowed: counter.Count <= max,
		ResetAt: counter.ResetAt,
	}
	if remaining := max - counter.Count; remaining > 0 {
		res.Remaining = int(remaining)
	}
	if !res.Allowed {
		res.RetryAfter = ceilSeconds(counter.ResetAt.Sub(l.now()))
	}
	return res, nil
}

// Reset clears the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return l.kv.Delete(ctx, l.config.Prefix+key)
}

func ceilSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	s := d / time.Second
	if d%time.Second != 0 {
		s++
	}
	return s * time.Second
}
