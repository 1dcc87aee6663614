package authkit

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/rate"
	"github.com/MrEthical07/authkit/rbac"
	"github.com/MrEthical07/authkit/refresh"
	"github.com/MrEthical07/authkit/session"
	"github.com/MrEthical07/authkit/store"
	"github.com/MrEthical07/authkit/token"
)

// newRedisClient is swapped in tests to observe the client Build owns.
var newRedisClient = redis.NewClient

// Builder assembles a Kit. It is single use.
type Builder struct {
	config Config

	store store.Store
	redis redis.UniversalClient

	permissions []string
	roles       map[string][]string

	userProvider UserProvider
	hasher       password.Hasher
	auditSink    AuditSink
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore injects the key-value backend. It takes precedence over WithRedis and
// Config.Redis.Addr.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis uses client for the Redis store. The kit does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPermissions fixes the permission vocabulary. Role definitions naming other
// permissions then fail.
func (b *Builder) WithPermissions(perms []string) *Builder {
	b.permissions = perms
	return b
}

// WithRoles defines initial roles.
func (b *Builder) WithRoles(r map[string][]string) *Builder {
	b.roles = r
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher replaces the Argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock overrides time.Now for every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Kit, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}

	kit := &Kit{
		config:  cfg,
		users:   b.userProvider,
		log:     log,
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}
	ready := false
	defer func() {
		if !ready {
			for _, c := range kit.closers {
				_ = c()
			}
		}
	}()

	// -------- STORE --------
	switch {
	case b.store != nil:
		kit.kv = b.store
	case b.redis != nil:
		kit.kv = store.NewRedis(b.redis, cfg.Redis.Prefix)
	case cfg.Redis.Addr != "":
		client := newRedisClient(&redis.Options{Addr: cfg.Redis.Addr})
		kit.kv = store.NewRedis(client, cfg.Redis.Prefix)
		kit.closers = append(kit.closers, client.Close)
	default:
		kit.kv = store.NewMemory(now)
	}

	// -------- RBAC --------
	roles, err := buildAuthority(b.permissions, b.roles)
	if err != nil {
		return nil, err
	}
	kit.roles = roles

	// -------- TOKENS --------
	tokens, err := token.New(token.Config{
		Secret:     cfg.Token.SigningSecret,
		Algorithm:  cfg.Token.Algorithm,
		DefaultTTL: cfg.Token.AccessTTL,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		Leeway:     cfg.Token.Leeway,
		Clock:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	kit.tokens = tokens

	kit.refresh, err = refresh.NewStore(tokens, kit.kv, refresh.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Refresh.TTL,
		TokenBytes: cfg.Refresh.TokenBytes,
		Clock:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// -------- SESSIONS --------
	kit.sessions, err = session.NewRegistry(kit.kv, session.Config{
		IdleTimeout:     cfg.Session.IdleTimeout,
		AbsoluteTimeout: cfg.Session.AbsoluteTimeout,
		IDBytes:         cfg.Session.IDBytes,
		Clock:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// -------- RATE / LOCKOUT --------
	kit.limiter, err = rate.New(kit.kv, rate.Config{
		Window:      cfg.Rate.Window,
		MaxAttempts: cfg.Rate.MaxAttempts,
		Prefix:      "login:",
		Clock:       now,
	})
	if err != nil {
		return nil, err
	}
	kit.lockout, err = rate.NewTracker(kit.limiter, rate.LockoutConfig{Duration: cfg.Rate.LockoutDuration})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	kit.hasher = b.hasher
	if kit.hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		kit.hasher = ph
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = internalaudit.NewZapSink(log)
	}
	// At most one drop line per second; AuditDropped keeps the full count.
	dropLog := log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(core, time.Second, 1, 0)
	}))
	kit.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(e internalaudit.Event) {
			dropLog.Warn("audit event dropped", zap.String("event_type", e.EventType))
		},
	}, sink)

	b.built = true
	ready = true

	log.Info("authkit ready",
		zap.String("algorithm", string(cfg.Token.Algorithm)),
		zap.String("store", storeKind(kit.kv)),
		zap.Int("roles", roles.RoleCount()),
	)
	return kit, nil
}

func buildAuthority(perms []string, roles map[string][]string) (*rbac.Authority, error) {
	registry := rbac.NewRegistry()
	for _, p := range perms {
		if _, err := registry.Intern(p); err != nil {
			return nil, err
		}
	}
	if len(perms) > 0 {
		registry.Freeze()
	}

	authority := rbac.NewAuthority(registry)

	// Sorted so a failing definition is reported deterministically.
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := authority.DefineRole(name, roles[name]...); err != nil {
			if errors.Is(err, rbac.ErrRegistryFrozen) {
				return nil, fmt.Errorf("%w: role %q uses an undeclared permission", ErrInvalidConfig, name)
			}
			return nil, err
		}
	}
	return authority, nil
}

func storeKind(s store.Store) string {
	switch s.(type) {
	case *store.Memory:
		return "memory"
	case *store.Redis:
		return "redis"
	default:
		return fmt.Sprintf("%T", s)
	}
}
