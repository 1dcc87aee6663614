package authkit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/token"
)

// Config is the full kit configuration. Start from DefaultConfig or
// ConfigFromEnv; the signing secret has no default.
type Config struct {
	Token    TokenConfig
	Refresh  RefreshConfig
	Session  SessionConfig
	Rate     RateConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Redis    RedisConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures access-token signing and verification.
type TokenConfig struct {
	SigningSecret []byte
	Algorithm     token.Algorithm
	AccessTTL     time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// RefreshConfig configures refresh-token lifetime and entropy.
type RefreshConfig struct {
	TTL        time.Duration
	TokenBytes int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the session registry.
type SessionConfig struct {
	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	IDBytes         int
}

/*
====================================
RATE CONFIG
====================================
*/

// RateConfig configures login throttling. MaxAttempts failures per Window are
// allowed; the next one locks the identifier for LockoutDuration.
type RateConfig struct {
	Window          time.Duration
	MaxAttempts     int
	LockoutDuration time.Duration
}

// PasswordConfig holds Argon2id cost parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the validate-latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig selects the Redis store when no store is injected.
type RedisConfig struct {
	Addr   string
	Prefix string
}

// DefaultConfig returns the defaults for every option except the signing secret.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Algorithm: token.HS256,
			AccessTTL: 15 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:        7 * 24 * time.Hour,
			TokenBytes: 48,
		},
		Session: SessionConfig{
			IdleTimeout:     30 * time.Minute,
			AbsoluteTimeout: 24 * time.Hour,
			IDBytes:         32,
		},
		Rate: RateConfig{
			Window:          15 * time.Minute,
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Redis: RedisConfig{
			Prefix: "authkit:",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.SigningSecret = append([]byte(nil), cfg.Token.SigningSecret...)
	return out
}

// Validate checks every option. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.SigningSecret) < token.MinSecretBytes {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, token.ErrWeakSecret)
	}
	switch c.Token.Algorithm {
	case token.HS256, token.HS384, token.HS512:
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, token.ErrUnsupportedAlgorithm, c.Token.Algorithm)
	}
	if c.Token.AccessTTL <= 0 {
		return fmt.Errorf("%w: Token AccessTTL must be > 0", ErrInvalidConfig)
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: Token Leeway must be within 0..2m", ErrInvalidConfig)
	}

	// Refresh
	if c.Refresh.TTL < c.Token.AccessTTL {
		return fmt.Errorf("%w: Refresh TTL must be >= Token AccessTTL", ErrInvalidConfig)
	}
	if c.Refresh.TokenBytes < 32 {
		return fmt.Errorf("%w: Refresh TokenBytes must be >= 32", ErrInvalidConfig)
	}

	// Session
	if c.Session.IdleTimeout <= 0 || c.Session.AbsoluteTimeout <= 0 {
		return fmt.Errorf("%w: Session timeouts must be > 0", ErrInvalidConfig)
	}
	if c.Session.IdleTimeout > c.Session.AbsoluteTimeout {
		return fmt.Errorf("%w: Session IdleTimeout must be <= AbsoluteTimeout", ErrInvalidConfig)
	}
	if c.Session.IDBytes < internal.MinRandomBytes {
		return fmt.Errorf("%w: Session IDBytes must be >= %d", ErrInvalidConfig, internal.MinRandomBytes)
	}

	// Rate
	if c.Rate.Window <= 0 || c.Rate.MaxAttempts <= 0 || c.Rate.LockoutDuration <= 0 {
		return fmt.Errorf("%w: Rate Window, MaxAttempts and LockoutDuration must be > 0", ErrInvalidConfig)
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return fmt.Errorf("%w: Password Memory must be >= 8192 KB", ErrInvalidConfig)
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return fmt.Errorf("%w: Password Time and Parallelism must be >= 1", ErrInvalidConfig)
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return fmt.Errorf("%w: Password SaltLength and KeyLength must be >= 16", ErrInvalidConfig)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Environment variables read by ConfigFromEnv.
const (
	EnvSigningSecret          = "AUTHKIT_SIGNING_SECRET"
	EnvTokenAlgorithm         = "AUTHKIT_TOKEN_ALGORITHM"
	EnvAccessTTL              = "AUTHKIT_ACCESS_TTL"
	EnvRefreshTTL             = "AUTHKIT_REFRESH_TTL"
	EnvSessionIdleTimeout     = "AUTHKIT_SESSION_IDLE_TIMEOUT"
	EnvSessionAbsoluteTimeout = "AUTHKIT_SESSION_ABSOLUTE_TIMEOUT"
	EnvRateWindow             = "AUTHKIT_RATE_WINDOW"
	EnvRateMaxAttempts        = "AUTHKIT_RATE_MAX_ATTEMPTS"
	EnvLockoutDuration        = "AUTHKIT_LOCKOUT_DURATION"
	EnvIssuer                 = "AUTHKIT_ISSUER"
	EnvAudience               = "AUTHKIT_AUDIENCE"
	EnvRedisAddr              = "AUTHKIT_REDIS_ADDR"
)

// ConfigFromEnv overlays AUTHKIT_* variables on DefaultConfig and validates the
// result. lookup defaults to os.LookupEnv. Durations accept Go syntax ("90s",
// "1h30m") or the compact token grammar ("7d").
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()

	if v, ok := lookup(EnvSigningSecret); ok {
		cfg.Token.SigningSecret = []byte(v)
	}
	if v, ok := lookup(EnvTokenAlgorithm); ok && v != "" {
		cfg.Token.Algorithm = token.Algorithm(strings.ToUpper(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvIssuer); ok {
		cfg.Token.Issuer = v
	}
	if v, ok := lookup(EnvAudience); ok {
		cfg.Token.Audience = v
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Redis.Addr = strings.TrimSpace(v)
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{EnvAccessTTL, &cfg.Token.AccessTTL},
		{EnvRefreshTTL, &cfg.Refresh.TTL},
		{EnvSessionIdleTimeout, &cfg.Session.IdleTimeout},
		{EnvSessionAbsoluteTimeout, &cfg.Session.AbsoluteTimeout},
		{EnvRateWindow, &cfg.Rate.Window},
		{EnvLockoutDuration, &cfg.Rate.LockoutDuration},
	}
	for _, d := range durations {
		v, ok := lookup(d.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := parseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookup(EnvRateMaxAttempts); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvRateMaxAttempts, err)
		}
		cfg.Rate.MaxAttempts = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if d := token.ParseExpiry(v, -1); d >= 0 {
		return d, nil
	}
	return 0, fmt.Errorf("invalid duration %q", v)
}
