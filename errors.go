package goIdent

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed or on a nil receiver.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials is the generic credential failure. Unknown
	// identifier and wrong password are intentionally indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window is open, even for
	// a correct password.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountNotActive is returned for pending, inactive, suspended, or
	// banned accounts.
	ErrAccountNotActive = errors.New("account not active")
	// ErrLoginRateLimited is returned when the optional Redis throttle is
	// configured and the identifier or IP exceeded its attempt budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrTokenExpired is returned for any token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned for a revoked refresh token. Presenting an
	// already-rotated token is a replay signal and revokes the whole family.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid is returned for tokens that fail signature or claim
	// validation.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenTypeMismatch is returned when a token's declared type does not
	// match the expected use, regardless of cryptographic validity.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrTwoFactorRequired signals that login produced a pending challenge
	// instead of a token pair.
	ErrTwoFactorRequired = errors.New("two-factor required")
	// ErrTwoFactorInvalid is the generic failure for a wrong TOTP or backup
	// code.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrTwoFactorNotEnabled is returned by two-factor management calls on an
	// account without two-factor configured.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrTwoFactorAlreadyEnabled is returned by EnableTwoFactor when the
	// account already has a confirmed secret.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrDuplicateEmail reports a registration conflict on the email field.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateUsername reports a registration conflict on the username
	// field.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrValidation is wrapped around input-validation failures raised before
	// any store access.
	ErrValidation = errors.New("validation failed")
	// ErrPasswordPolicy is returned when a new password fails the configured
	// policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAPIKeyInvalid is the generic failure for an unknown, inactive,
	// revoked, or expired API key, or one presented from a non-whitelisted
	// origin.
	ErrAPIKeyInvalid = errors.New("invalid api key")
	// ErrScopeNotAllowed is returned when requested scopes exceed what the
	// subject's role grants.
	ErrScopeNotAllowed = errors.New("scope not allowed")
	// ErrNotFound is the generic missing-record error surfaced by store
	// adapters.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps transport-level store failures. It never
	// carries credential material.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrInternal wraps unexpected crypto or encoding failures without
	// leaking their cause to callers.
	ErrInternal = errors.New("internal error")
)
