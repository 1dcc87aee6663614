// Package middleware adapts an authkit.Kit to net/http.
//
//   - [Bearer] verifies the Authorization bearer access token.
//   - [Session] validates a session cookie against the presenting client.
//   - [Require] turns an authorization decision into 401 or 403.
//   - [Throttle] applies a per-client token bucket.
//   - [RequestID] tags each request with an id carried into logs and audit events.
//
// Bearer and Session put the authenticated user id into the request context with
// rbac.WithSubject, so Require works behind either. Rejections write only the
// generic reason.Reason.Public text.
package middleware
