package authkit

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/authkit/internal/audit"
	"github.com/MrEthical07/authkit/reason"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginLocked        = "login_locked"
	auditEventAuthorizeDenied    = "authorize_denied"
	auditEventTokenForgery       = "token_forgery"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshFailure     = "refresh_failure"
	auditEventSessionHijack      = "session_hijack"
	auditEventSessionExpired     = "session_expired"
	auditEventSessionRegenerated = "session_regenerated"
	auditEventLogout             = "logout"
	auditEventLogoutAll          = "logout_all"
)

func (k *Kit) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if k == nil || k.audit == nil {
		return
	}

	event := internalaudit.NewEvent(eventType, k.now())
	event.UserID = userID
	event.SessionID = sessionID
	event.IP = clientIPFromContext(ctx)
	event.Success = success
	event.Reason = auditReason(err)
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["request_id"] = id
	}

	k.audit.Emit(ctx, event)
}

func auditReason(err error) string {
	if err == nil {
		return ""
	}
	if r := reason.Of(err); r != reason.None {
		return r.String()
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid credentials"
	case errors.Is(err, ErrUserProvider):
		return "user provider failure"
	default:
		return "internal error"
	}
}
