package authkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/password"
	"github.com/MrEthical07/authkit/rate"
	"github.com/MrEthical07/authkit/rbac"
	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/refresh"
	"github.com/MrEthical07/authkit/session"
	"github.com/MrEthical07/authkit/store"
	"github.com/MrEthical07/authkit/token"
)

// Kit owns one instance of every component plus the logging, audit and metrics
// plumbing around them.
type Kit struct {
	config Config

	kv       store.Store
	roles    *rbac.Authority
	tokens   *token.Service
	refresh  *refresh.Store
	sessions *session.Registry
	limiter  *rate.Limiter
	lockout  *rate.Tracker
	hasher   password.Hasher
	users    UserProvider

	log     *zap.Logger
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string

	closers   []func() error
	closeOnce sync.Once
}

// LockedError is returned by Login while an identifier is locked out. It matches
// both ErrLoginLocked and reason.Locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "login locked until " + e.Until.UTC().Format(time.RFC3339)
}

func (e *LockedError) Unwrap() []error {
	return []error{ErrLoginLocked, reason.Locked}
}

func (k *Kit) Roles() *rbac.Authority { return k.roles }
func (k *Kit) Tokens() *token.Service { return k.tokens }
func (k *Kit) RefreshTokens() *refresh.Store { return k.refresh }
func (k *Kit) Sessions() *session.Registry { return k.sessions }
func (k *Kit) Limiter() *rate.Limiter { return k.limiter }
func (k *Kit) Lockout() *rate.Tracker { return k.lockout }
func (k *Kit) PasswordHasher() password.Hasher { return k.hasher }
func (k *Kit) Store() store.Store { return k.kv }
func (k *Kit) Logger() *zap.Logger { return k.log }
func (k *Kit) Config() Config { return cloneConfig(k.config) }
func (k *Kit) MetricsSnapshot() MetricsSnapshot { return k.metrics.Snapshot() }

// AuditDropped returns how many audit events were dropped under backpressure.
func (k *Kit) AuditDropped() uint64 {
	return k.audit.Dropped()
}

// Login authenticates identifier with password and, on success, opens a session
// bound to md and issues a token pair.
//
// Unknown identifiers and wrong passwords both return ErrInvalidCredentials.
// Locked identifiers return a *LockedError without touching the user provider.
func (k *Kit) Login(ctx context.Context, identifier, pw string, md session.Metadata) (LoginResult, error) {
	if k.users == nil {
		return LoginResult{}, ErrUserProviderMissing
	}
	if identifier == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	ctx = k.withClientIP(ctx, md)

	until, locked, err := k.lockout.LockedUntil(ctx, identifier)
	if err != nil {
		return LoginResult{}, k.backendFailure(ctx, "login lockout lookup", err)
	}
	if locked {
		k.metrics.Inc(MetricLoginLocked)
		k.emitAudit(ctx, auditEventLoginLocked, false, "", "", reason.Locked, nil)
		return LoginResult{}, &LockedError{Until: until}
	}

	user, err := k.users.GetUserByIdentifier(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		k.burnPasswordCheck(pw)
		return LoginResult{}, k.loginFailed(ctx, identifier, "")
	}
	if err != nil {
		k.logger(ctx).Error("user provider failed", zap.Error(err))
		return LoginResult{}, fmt.Errorf("%w: %v", ErrUserProvider, err)
	}

	ok, err := k.hasher.Verify(pw, user.PasswordHash)
	if err != nil {
		k.logger(ctx).Warn("stored password hash rejected", zap.String("user_id", user.UserID), zap.Error(err))
	}
	if !ok {
		return LoginResult{}, k.loginFailed(ctx, identifier, user.UserID)
	}

	if _, err := k.lockout.RecordAttempt(ctx, identifier, true); err != nil {
		return LoginResult{}, k.backendFailure(ctx, "login attempt reset", err)
	}
	k.upgradePasswordHash(ctx, user, pw)
	for _, role := range user.Roles {
		if err := k.roles.AssignRole(user.UserID, role); err != nil {
			k.logger(ctx).Warn("role assignment skipped", zap.String("role", role), zap.Error(err))
		}
	}

	sid, err := k.sessions.Create(ctx, user.UserID, md)
	if err != nil {
		return LoginResult{}, k.backendFailure(ctx, "session create", err)
	}
	pair, err := k.refresh.Generate(ctx, user.UserID)
	if err != nil {
		_ = k.sessions.Destroy(ctx, sid)
		return LoginResult{}, k.backendFailure(ctx, "token issue", err)
	}

	k.metrics.Inc(MetricLoginSuccess)
	k.metrics.Inc(MetricSessionCreated)
	k.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, sid, nil, nil)
	k.logger(ctx).Info("login", zap.String("user_id", user.UserID))

	return LoginResult{UserID: user.UserID, SessionID: sid, Tokens: pair}, nil
}

func (k *Kit) loginFailed(ctx context.Context, identifier, userID string) error {
	k.metrics.Inc(MetricLoginFailure)
	k.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, nil)

	res, err := k.lockout.RecordAttempt(ctx, identifier, false)
	if errors.Is(err, reason.Locked) {
		k.metrics.Inc(MetricRateLimitHit)
		k.metrics.Inc(MetricLoginLocked)
		k.emitAudit(ctx, auditEventLoginLocked, false, userID, "", reason.Locked, func() map[string]string {
			return map[string]string{"retry_after": res.RetryAfter.String()}
		})
		k.logger(ctx).Warn("login locked out",
			zap.String("user_id", userID),
			zap.Time("until", res.ResetAt),
		)
		return &LockedError{Until: res.ResetAt}
	}
	if err != nil {
		return k.backendFailure(ctx, "login attempt record", err)
	}
	return ErrInvalidCredentials
}

// burnPasswordCheck runs a verification against a throwaway hash so unknown
// identifiers cost the same as wrong passwords.
func (k *Kit) burnPasswordCheck(pw string) {
	k.dummyOnce.Do(func() {
		k.dummyHash, _ = k.hasher.Hash("authkit-timing-equalizer")
	})
	if k.dummyHash != "" {
		_, _ = k.hasher.Verify(pw, k.dummyHash)
	}
}

func (k *Kit) upgradePasswordHash(ctx context.Context, user UserRecord, pw string) {
	up, ok := k.users.(PasswordUpgrader)
	if !ok {
		return
	}
	need, err := k.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !need {
		return
	}
	hash, err := k.hasher.Hash(pw)
	if err == nil {
		err = up.UpdatePasswordHash(ctx, user.UserID, hash)
	}
	if err != nil {
		k.logger(ctx).Warn("password rehash failed", zap.String("user_id", user.UserID), zap.Error(err))
	}
}

// Authorize evaluates permission for the subject carried by ctx (see
// rbac.WithSubject).
func (k *Kit) Authorize(ctx context.Context, permission string) rbac.Decision {
	d := k.roles.Authorize(permission)(ctx)
	if d.Allowed {
		k.metrics.Inc(MetricAuthorizeAllowed)
		return d
	}
	k.metrics.Inc(MetricAuthorizeDenied)
	k.emitAudit(ctx, auditEventAuthorizeDenied, false, d.Subject, "", d.Reason, func() map[string]string {
		return map[string]string{"permission": permission}
	})
	return d
}

// VerifyAccess verifies an access token and returns its claims.
func (k *Kit) VerifyAccess(ctx context.Context, accessToken string) (token.Claims, error) {
	start := time.Now()
	claims, err := k.tokens.Verify(accessToken)
	k.metrics.Observe(MetricValidateLatency, time.Since(start))

	if err == nil {
		k.metrics.Inc(MetricTokenVerified)
		return claims, nil
	}

	k.metrics.Inc(MetricTokenRejected)
	if r := reason.Of(err); r.IsSecurityEvent() {
		k.metrics.Inc(MetricTokenForgery)
		k.logger(ctx).Warn("forged access token rejected", zap.Stringer("reason", r))
		k.emitAudit(ctx, auditEventTokenForgery, false, "", "", err, nil)
	}
	return nil, err
}

// Refresh rotates a refresh token.
func (k *Kit) Refresh(ctx context.Context, refreshToken string) (refresh.Pair, error) {
	pair, err := k.refresh.Refresh(ctx, refreshToken)
	if err != nil {
		k.metrics.Inc(MetricRefreshFailure)
		k.emitAudit(ctx, auditEventRefreshFailure, false, "", "", err, nil)
		if reason.Of(err) == reason.None {
			return refresh.Pair{}, k.backendFailure(ctx, "refresh", err)
		}
		return refresh.Pair{}, err
	}
	k.metrics.Inc(MetricRefreshSuccess)
	k.emitAudit(ctx, auditEventRefreshSuccess, true, "", "", nil, nil)
	return pair, nil
}

// CheckSession validates a session id against the presenting client.
func (k *Kit) CheckSession(ctx context.Context, sessionID string, md session.Metadata) (*session.Session, error) {
	ctx = k.withClientIP(ctx, md)
	s, err := k.sessions.Validate(ctx, sessionID, md)
	if err == nil {
		k.metrics.Inc(MetricSessionValidated)
		return s, nil
	}

	switch r := reason.Of(err); {
	case r == reason.Hijacked:
		k.metrics.Inc(MetricSessionHijack)
		k.logger(ctx).Warn("session hijack detected",
			zap.String("ip", md.IP),
			zap.String("user_agent", md.UserAgent),
		)
		k.emitAudit(ctx, auditEventSessionHijack, false, "", "", err, func() map[string]string {
			return map[string]string{"user_agent": md.UserAgent}
		})
	case r.IsExpiry():
		k.metrics.Inc(MetricSessionExpired)
		k.emitAudit(ctx, auditEventSessionExpired, false, "", "", err, nil)
	case r == reason.None:
		return nil, k.backendFailure(ctx, "session validate", err)
	}
	return nil, err
}

// RegenerateSession swaps oldID for a fresh id bound to md.
func (k *Kit) RegenerateSession(ctx context.Context, oldID string, md session.Metadata) (string, error) {
	ctx = k.withClientIP(ctx, md)
	id, err := k.sessions.Regenerate(ctx, oldID, md)
	if err != nil {
		if reason.Of(err) == reason.None {
			return "", k.backendFailure(ctx, "session regenerate", err)
		}
		return "", err
	}
	k.metrics.Inc(MetricSessionRegenerated)
	k.emitAudit(ctx, auditEventSessionRegenerated, true, "", id, nil, nil)
	return id, nil
}

// Logout destroys one session and revokes one refresh token. Either may be empty.
func (k *Kit) Logout(ctx context.Context, sessionID, refreshToken string) error {
	if sessionID != "" {
		if err := k.sessions.Destroy(ctx, sessionID); err != nil {
			return k.backendFailure(ctx, "logout session", err)
		}
	}
	if refreshToken != "" {
		if err := k.refresh.Revoke(ctx, refreshToken); err != nil {
			return k.backendFailure(ctx, "logout refresh", err)
		}
	}
	k.metrics.Inc(MetricLogout)
	k.emitAudit(ctx, auditEventLogout, true, "", sessionID, nil, nil)
	return nil
}

// LogoutAll destroys every session and refresh token of userID.
func (k *Kit) LogoutAll(ctx context.Context, userID string) error {
	n, err := k.sessions.DestroyAllForUser(ctx, userID)
	if err != nil {
		return k.backendFailure(ctx, "logout all sessions", err)
	}
	if err := k.refresh.RevokeAll(ctx, userID); err != nil {
		return k.backendFailure(ctx, "logout all refresh", err)
	}
	k.metrics.Inc(MetricLogoutAll)
	k.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"sessions": fmt.Sprint(n)}
	})
	k.logger(ctx).Info("logout all", zap.String("user_id", userID), zap.Int("sessions", n))
	return nil
}

// Close drains the audit dispatcher and releases clients the kit created.
func (k *Kit) Close() error {
	var errs []error
	k.closeOnce.Do(func() {
		k.audit.Close()
		for _, c := range k.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		_ = k.log.Sync()
	})
	return errors.Join(errs...)
}

func (k *Kit) backendFailure(ctx context.Context, op string, err error) error {
	k.logger(ctx).Error("backend failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (k *Kit) logger(ctx context.Context) *zap.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return k.log.With(zap.String("request_id", id))
	}
	return k.log
}

func (k *Kit) withClientIP(ctx context.Context, md session.Metadata) context.Context {
	if md.IP != "" && clientIPFromContext(ctx) == "" {
		return WithClientIP(ctx, md.IP)
	}
	return ctx
}
