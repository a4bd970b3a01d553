// Package jwt manages signed-token issuance and verification for goIdent.
//
// Every token carries a typ claim naming its purpose (access, two_factor,
// email_verification, password_reset). [Manager.Parse] takes the expected
// type and rejects any mismatch regardless of cryptographic validity — a
// two-factor pending token is never accepted where an access token is
// expected.
//
// Refresh tokens are not produced here: they are opaque random values whose
// validity is a credential-store lookup, so revocation is instantaneous.
package jwt
