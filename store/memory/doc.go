// Package memory provides an in-process [goIdent.CredentialStore] backed by
// maps under a single mutex. It exists for tests and examples; every record is
// deep-copied on the way in and out so callers never share state with the
// store.
//
// The atomicity contract of the interface (RotateRefreshToken,
// ConsumeBackupCode, ConsumeTokenID) falls out of the store-wide lock.
package memory
