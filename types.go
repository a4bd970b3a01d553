package goIdent

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountPending is the state of a freshly registered account that has not
	// verified its email address yet.
	AccountPending AccountStatus = iota
	// AccountActive is the normal state of a usable account.
	AccountActive
	// AccountInactive marks an account that was deactivated by its owner.
	AccountInactive
	// AccountSuspended marks an account suspended by an operator.
	AccountSuspended
	// AccountBanned marks an account permanently banned by an operator.
	AccountBanned
)

// String returns the lowercase name used in store adapters and audit payloads.
func (s AccountStatus) String() string {
	switch s {
	case AccountPending:
		return "pending"
	case AccountActive:
		return "active"
	case AccountInactive:
		return "inactive"
	case AccountSuspended:
		return "suspended"
	case AccountBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// User is the security-relevant account record persisted through
// [CredentialStore]. Lockout state is a timed field separate from Status: a
// locked account keeps its status and unlocks automatically once LockoutUntil
// elapses or on the next successful login.
type User struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string

	PasswordHash string
	Role         string
	Status       AccountStatus

	FailedLogins int
	LockoutUntil time.Time

	TwoFactorSecret  []byte
	TwoFactorEnabled bool

	LastLoginAt time.Time
	LastLoginIP string
	LoginCount  int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceInfo describes the device a login or refresh originates from. All
// fields are optional; they are recorded on the refresh-token row and echoed
// in audit events.
type DeviceInfo struct {
	ID        string
	Name      string
	Type      string
	IP        string
	UserAgent string
}

// RefreshToken is the persisted record behind an opaque refresh-token value.
// Only the SHA-256 hash of the value is stored. Tokens descended from a single
// login share a FamilyID; ParentID links each rotation to its predecessor.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	FamilyID  string
	ParentID  string

	Device DeviceInfo

	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt time.Time
	UseCount   int

	Revoked       bool
	RevokedAt     time.Time
	RevokedReason string
}

// Usable reports whether the token may mint a new pair at the given instant.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}

// APIKeyStatus is the lifecycle state of an [APIKey].
type APIKeyStatus uint8

const (
	// APIKeyActive is the normal state; only active keys pass validation.
	APIKeyActive APIKeyStatus = iota
	// APIKeyInactive marks a key its owner has switched off without revoking.
	APIKeyInactive
	// APIKeyRevoked marks a key revoked explicitly; the state is terminal.
	APIKeyRevoked
	// APIKeyExpired marks a key past its expiry; set lazily on validation.
	APIKeyExpired
)

// String returns the lowercase name used in store adapters and audit payloads.
func (s APIKeyStatus) String() string {
	switch s {
	case APIKeyActive:
		return "active"
	case APIKeyInactive:
		return "inactive"
	case APIKeyRevoked:
		return "revoked"
	case APIKeyExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// APIKey is a scoped service-to-service credential. The plaintext key is
// returned exactly once at creation; only its SHA-256 hash and a short
// visible prefix are persisted. Scopes are immutable after creation.
type APIKey struct {
	ID     string
	UserID string
	Name   string

	KeyHash string
	Prefix  string

	Status APIKeyStatus
	Scopes []string

	ExpiresAt        time.Time
	RateLimitPerHour int

	IPWhitelist       []string
	ReferrerWhitelist []string

	UseCount   int64
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// HasScope reports whether the key grants the named scope. The "admin" scope
// is a wildcard that grants everything.
func (k *APIKey) HasScope(scope string) bool {
	if k == nil {
		return false
	}
	for _, s := range k.Scopes {
		if s == ScopeAdmin || s == scope {
			return true
		}
	}
	return false
}

// ScopeAdmin is the wildcard scope. A token or key carrying it passes every
// scope check.
const ScopeAdmin = "admin"

// TokenPair is the result of a completed authentication: a signed short-lived
// access token plus an opaque refresh token.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// TwoFactorChallenge is returned by [Engine.Login] instead of a [TokenPair]
// when the account has two-factor authentication enabled. The caller must
// present Token together with a TOTP or backup code to
// [Engine.CompleteTwoFactor] before any access or refresh token is issued.
type TwoFactorChallenge struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult carries either the issued pair or a pending two-factor
// challenge; exactly one of the two is non-nil.
type LoginResult struct {
	User      *User
	Pair      *TokenPair
	Challenge *TwoFactorChallenge
}

// TwoFactorSetup is returned by [Engine.EnableTwoFactor]. The secret and
// provisioning URI are shown to the user once; two-factor stays disabled until
// the first code is confirmed through [Engine.VerifyTwoFactorSetup].
type TwoFactorSetup struct {
	Secret string
	URI    string
}

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Device    DeviceInfo
}

// RegisterResult carries the created user plus either an issued pair (when
// the registration policy auto-verifies) or an email-verification token for
// the host application to deliver.
type RegisterResult struct {
	User              *User
	Pair              *TokenPair
	VerificationToken string
}

// CreateAPIKeyRequest is the input to [Engine.CreateAPIKey].
type CreateAPIKeyRequest struct {
	Name              string
	Scopes            []string
	ExpiresAt         time.Time
	RateLimitPerHour  int
	IPWhitelist       []string
	ReferrerWhitelist []string
}

// CreateAPIKeyResult carries the persisted record and the plaintext key. The
// plaintext is not recoverable afterwards.
type CreateAPIKeyResult struct {
	Key       *APIKey
	Plaintext string
}

// APIKeyIdentity is the outcome of a successful [Engine.ValidateAPIKey] call:
// the owning user and the key's declared scopes for the caller to enforce.
type APIKeyIdentity struct {
	User   *User
	KeyID  string
	Scopes []string
}

// CredentialStore is the persistence interface the engine is composed with.
// Implementations must provide per-record atomicity for RotateRefreshToken
// and ConsumeBackupCode; see store/memory, store/postgres, and store/redis.
//
// Duplicate-identity failures from CreateUser are reported with
// [ErrDuplicateEmail] / [ErrDuplicateUsername]; missing records with
// [ErrNotFound].
type CredentialStore interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	SaveUser(ctx context.Context, user *User) error

	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	// RotateRefreshToken atomically revokes the token identified by tokenHash
	// (reason "rotation") and persists successor in the same operation. It
	// fails with [ErrTokenRevoked] if the token is already revoked, without
	// persisting successor. Two concurrent rotations of one token must not
	// both succeed.
	RotateRefreshToken(ctx context.Context, tokenHash string, successor *RefreshToken) (*RefreshToken, error)
	FindRefreshTokensByUser(ctx context.Context, userID string) ([]*RefreshToken, error)
	RevokeRefreshTokensByFamily(ctx context.Context, familyID, reason string) error
	RevokeRefreshTokensByUser(ctx context.Context, userID, reason string) error

	GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	SaveAPIKey(ctx context.Context, key *APIKey) error
	FindAPIKeysByUser(ctx context.Context, userID string) ([]*APIKey, error)

	GetBackupCodeHashes(ctx context.Context, userID string) ([]string, error)
	ReplaceBackupCodes(ctx context.Context, userID string, hashes []string) error
	// ConsumeBackupCode removes the first stored hash for which match returns
	// true and reports whether one was removed. Removal is atomic: two
	// concurrent calls matching the same hash must not both succeed.
	ConsumeBackupCode(ctx context.Context, userID string, match func(hash string) bool) (bool, error)

	// ConsumeTokenID records jti as used within ttl and reports whether it was
	// fresh. Used to make password-reset and email-verification tokens
	// single-use under concurrent redemption.
	ConsumeTokenID(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// Clock abstracts time for expiry and lockout logic. Production code uses
// [SystemClock]; tests inject a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default [Clock] backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
