// Package internal contains helper utilities that are intentionally private to
// goIdent: opaque token generation and hashing, API-key material, backup-code
// generation, and family identifiers.
//
// # Sub-packages
//
//   - rate — Redis-backed login/refresh throttle primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdent API.
//   - Be imported by any package outside the goIdent module.
package internal
