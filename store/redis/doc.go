// Package redis provides a Redis-backed [goIdent.CredentialStore] for
// deployments that keep credential state in Redis rather than SQL.
//
// Records are stored as JSON values under typed key prefixes, with sets
// indexing refresh tokens by user and family and API keys by user. Mutations
// that must be atomic (RotateRefreshToken, ConsumeBackupCode) run as
// WATCH/MULTI optimistic transactions with bounded retry on contention;
// ConsumeTokenID rides on SET NX with expiry.
//
// Revoked refresh-token records are retained until their natural expiry plus
// a retention window so replay of an already-rotated token is still
// detectable.
package redis
