package middleware

import (
	"net/http"

	"github.com/MrEthical07/authkit"
)

// Require allows the request only when the context subject holds permission.
// It must run behind Bearer or Session.
func Require(kit *authkit.Kit, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := kit.Authorize(r.Context(), permission)
			if !d.Allowed {
				writeReason(w, d.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
