// Package internal contains helpers private to authkit: secure random identifiers,
// token hashing and client fingerprinting.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
