// Package rate provides fixed-window attempt limiting and timed lockout for
// security-sensitive flows such as login.
//
// # Window semantics
//
// Fixed-window counters backed by [store.Store.Increment]: the first hit opens a
// window of Config.Window; the counter restarts once the window has elapsed.
// Check-and-increment is a single atomic store call, so concurrent attempts never
// over-admit.
//
// # Lockout
//
// [Tracker] escalates an exhausted limiter budget to a lockout record that
// outlives the window. Expired lockouts are removed lazily when consulted; there
// is no background sweep.
package rate
