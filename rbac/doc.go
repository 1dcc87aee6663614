// Package rbac implements role-based authorization: permission interning, role
// definitions as permission bitmasks, user role assignment, and permission checks.
//
// # Role extension
//
// [Authority.ExtendRole] copies the base role's mask at call time. There is no live
// link between roles, so redefining the base later never changes a derived role.
//
// # Failure mode
//
// Every lookup miss denies. [Authority.Can] never panics and never returns an error.
//
// # What this package must NOT do
//
//   - Write HTTP responses (see middleware).
//   - Perform I/O; roles and assignments are process memory.
package rbac
