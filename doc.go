// Package authkit composes role-based authorization, JWT access tokens, rotating
// refresh tokens, server-side sessions and login throttling into one [Kit].
//
// The components live in their own packages (rbac, token, refresh, session, rate)
// and can be used independently. Kit wires them to a shared [store.Store], a zap
// logger, an async audit dispatcher and lock-free metrics, and exposes the
// instrumented flows an HTTP layer needs: Login, Authorize, VerifyAccess, Refresh,
// CheckSession, RegenerateSession, Logout and LogoutAll.
//
// Kit methods are safe for concurrent use after [Builder.Build].
//
// # Failure reporting
//
// Expected authentication failures are returned as errors that match a
// [reason.Reason] with errors.Is. They are normal control flow; map them to a
// generic client message with [reason.Reason.Public]. Only configuration problems
// fail at Build time.
//
// # What this package must NOT do
//
//   - Write HTTP responses (see the middleware package).
//   - Expose Redis clients or record encodings in its public API.
package authkit
