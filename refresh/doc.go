// Package refresh issues access/refresh token pairs and rotates opaque refresh
// tokens.
//
// # Rotation
//
// A refresh token is single use. [Store.Refresh] atomically takes (reads and
// deletes) the record before issuing the next pair, so replaying a used token, or
// racing two refreshes with the same token, yields reason.Invalid for all but one
// caller. There is no grace window.
//
// # Storage
//
// Tokens are never stored in plaintext. The key is the SHA-256 of the token; a
// per-user index set backs [Store.RevokeAll].
package refresh
