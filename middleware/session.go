package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/rbac"
	"github.com/MrEthical07/authkit/reason"
	"github.com/MrEthical07/authkit/session"
)

// DefaultSessionCookie is used by Session when cookie is empty.
const DefaultSessionCookie = "authkit_session"

type sessionContextKey struct{}

// SessionFromContext returns the session validated by Session.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return s, ok
}

// Metadata extracts the client attributes a session is bound to.
func Metadata(r *http.Request) session.Metadata {
	return session.Metadata{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		IP:             ClientIP(r),
	}
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are ignored;
// put a trusted proxy in front that rewrites RemoteAddr if needed.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Session validates the session named by cookie. A destroyed or expired session
// clears the cookie.
func Session(kit *authkit.Kit, cookie string) func(http.Handler) http.Handler {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if kit == nil {
				writeReason(w, reason.Unauthenticated)
				return
			}
			c, err := r.Cookie(cookie)
			if err != nil || c.Value == "" {
				writeReason(w, reason.Unauthenticated)
				return
			}

			ctx := withRequestMetadata(r)
			s, err := kit.CheckSession(ctx, c.Value, Metadata(r))
			if err != nil {
				if reason.Of(err) != reason.None {
					http.SetCookie(w, &http.Cookie{Name: cookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
				}
				writeError(w, err)
				return
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, s)
			ctx = rbac.WithSubject(ctx, s.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withRequestMetadata(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := ClientIP(r); ip != "" {
		ctx = authkit.WithClientIP(ctx, ip)
	}
	return ctx
}
