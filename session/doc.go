// Package session provides a server-side session registry with idle and absolute
// timeouts and client fingerprint binding.
//
// # Binary encoding
//
// Sessions are persisted through a [store.Store] in a compact, versioned binary
// format. Decode rejects unknown versions rather than guessing at their layout.
//
// # Validation order
//
// [Registry.Validate] checks, in order: existence, absolute lifetime, idle
// lifetime, fingerprint. A failed check destroys the session before returning, so
// a hijacked ID stops working for the legitimate holder too.
//
// # What this package must NOT do
//
//   - Interpret tokens or evaluate permissions.
//   - Fold the client IP into the fingerprint (mobile clients roam).
package session
