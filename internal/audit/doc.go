// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full delivery.
//   - [Event]: structured record with id, timestamp, type, user, session, IP, reason.
//
// The dispatcher does not decide which events to emit. Callers do.
package audit
