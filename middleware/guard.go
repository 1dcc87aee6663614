package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/rbac"
	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/token"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Bearer.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(token.Claims)
	return c, ok
}

// Bearer rejects requests without a valid access token and stores its claims and
// subject in the request context.
func Bearer(kit *authkit.Kit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if kit == nil {
				writeReason(w, reason.Unauthenticated)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeReason(w, reason.Unauthenticated)
				return
			}

			ctx := withRequestMetadata(r)
			claims, err := kit.VerifyAccess(ctx, raw)
			if err != nil {
				writeError(w, err)
				return
			}
			sub := claims.Subject()
			if sub == "" {
				writeReason(w, reason.InvalidClaims)
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey{}, claims)
			ctx = rbac.WithSubject(ctx, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	tok := strings.TrimSpace(value[len(bearer):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// writeError maps err to a status code. Errors without a reason are backend
// failures and answer 503.
func writeError(w http.ResponseWriter, err error) {
	r := reason.Of(err)
	if r == reason.None {
		if errors.Is(err, authkit.ErrInvalidCredentials) {
			writeReason(w, reason.Invalid)
			return
		}
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	writeReason(w, r)
}

func writeReason(w http.ResponseWriter, r reason.Reason) {
	status := http.StatusUnauthorized
	switch r {
	case reason.Denied:
		status = http.StatusForbidden
	case reason.RateLimited, reason.Locked:
		status = http.StatusTooManyRequests
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authkit"`)
	}
	http.Error(w, r.Public(), status)
}
