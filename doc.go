// Package goIdent provides a transport-free authentication and session-security
// engine: credential verification with account lockout, JWT access tokens,
// rotating opaque refresh tokens with family-based replay detection, TOTP
// two-factor authentication with single-use backup codes, and scoped API keys.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Persistence is pluggable: the engine talks only to
// [CredentialStore], and adapters ship under store/memory, store/postgres, and
// store/redis.
//
// # Architecture boundaries
//
// goIdent is the public surface. It exposes [Engine], [Builder], [Config], the
// domain types (User, RefreshToken, APIKey, ...), and the [CredentialStore]
// contract. Crypto primitives live in the password and jwt sub-packages; token
// generation and login throttling live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Own transport. No HTTP handlers, middleware, cookies, or headers; callers
//     map [DeviceInfo] and results onto their own protocol.
//   - Deliver anything. Email-verification and password-reset tokens are
//     returned to the host application, never sent.
//   - Leak account existence. Login failures collapse into
//     [ErrInvalidCredentials]; ForgotPassword succeeds silently for unknown
//     addresses.
//
// # Security contract
//
// Refresh tokens and API keys are stored hashed; plaintexts cross the API
// exactly once at issuance. Presenting an already-rotated refresh token
// revokes its whole family. Backup codes and purpose tokens (two-factor
// challenge, email verification, password reset) are single-use under
// concurrent presentation.
package goIdent
