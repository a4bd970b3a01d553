// Package rate provides the Redis-backed throttle primitives used by the
// engine's login and refresh paths.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - li: — login per-identifier
//   - lp: — login per-IP
//   - rf: — refresh per-family
//
// # What this package must NOT do
//
//   - Implement lockout policy (that lives on the user record).
//   - Be imported outside the goIdent module.
package rate
