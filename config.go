package goIdent

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goIdent APIs.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT          JWTConfig
	Refresh      RefreshConfig
	Password     PasswordConfig
	TOTP         TOTPConfig
	Lockout      LockoutConfig
	Registration RegistrationConfig
	APIKey       APIKeyConfig
	Scopes       ScopeConfig
	Throttle     ThrottleConfig
	Audit        AuditConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the signed-token surface: access tokens plus the
// transient purpose tokens (two-factor pending, email verification, password
// reset). Refresh tokens are opaque and are not configured here.
type JWTConfig struct {
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration

	AccessTTL            time.Duration
	TwoFactorTTL         time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures opaque refresh tokens and rotation behavior.
type RefreshConfig struct {
	TTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters plus the minimum accepted password
// length. Defaults target roughly 100ms per hash on commodity hardware.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the RFC 6238 engine and backup codes.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Skew      int // accepted steps either side of now
	Algorithm string

	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures the failed-login lockout window.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig controls account creation policy. With AutoVerify set,
// registration activates the account and issues a pair immediately; otherwise
// the caller receives an email-verification token to deliver out of band.
type RegistrationConfig struct {
	Enabled     bool
	AutoVerify  bool
	DefaultRole string
}

/*
====================================
API KEY CONFIG
====================================
*/

// APIKeyConfig configures service-to-service keys. Prefix is the visible key
// prefix (for example "gid" produces keys of the form gid_...).
type APIKeyConfig struct {
	Prefix                  string
	DefaultRateLimitPerHour int
	MaxKeysPerUser          int
}

/*
====================================
SCOPE CONFIG
====================================
*/

// ScopeConfig maps roles to their default scope sets. A caller may request a
// subset of its role's scopes at login, never a superset.
type ScopeConfig struct {
	RoleScopes map[string][]string
}

// scopesForRole returns the configured scope set for role, nil if unknown.
func (c ScopeConfig) scopesForRole(role string) []string {
	if c.RoleScopes == nil {
		return nil
	}
	return c.RoleScopes[role]
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig tunes the optional Redis-backed login/refresh throttle.
// Ignored unless a Redis client is supplied through [Builder.WithRedis].
type ThrottleConfig struct {
	Enabled                 bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the baseline configuration. Callers must still supply
// signing key material before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod:        "ed25519",
			Leeway:               30 * time.Second,
			AccessTTL:            15 * time.Minute,
			TwoFactorTTL:         5 * time.Minute,
			EmailVerificationTTL: 24 * time.Hour,
			PasswordResetTTL:     time.Hour,
		},
		Refresh: RefreshConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      10,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:           "goIdent",
			Digits:           6,
			Period:           30,
			Skew:             2,
			Algorithm:        "SHA1",
			BackupCodeCount:  10,
			BackupCodeLength: 10,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Registration: RegistrationConfig{
			Enabled:     true,
			AutoVerify:  false,
			DefaultRole: "user",
		},
		APIKey: APIKeyConfig{
			Prefix:                  "gid",
			DefaultRateLimitPerHour: 1000,
			MaxKeysPerUser:          20,
		},
		Scopes: ScopeConfig{
			RoleScopes: map[string][]string{
				"user":  {"read", "write"},
				"admin": {ScopeAdmin},
			},
		},
		Throttle: ThrottleConfig{
			MaxLoginAttempts:        20,
			LoginCooldownDuration:   5 * time.Minute,
			MaxRefreshAttempts:      60,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func (c Config) validate() error {
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "ed25519", "hs256":
	default:
		return errors.New("unsupported signing method")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.TwoFactorTTL <= 0 ||
		c.JWT.EmailVerificationTTL <= 0 || c.JWT.PasswordResetTTL <= 0 {
		return errors.New("invalid TTL configuration")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if c.Refresh.TTL <= 0 {
		return errors.New("refresh TTL must be positive")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("totp period must be positive")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 4 {
		return errors.New("totp skew must be between 0 and 4")
	}
	if c.TOTP.BackupCodeCount < 1 || c.TOTP.BackupCodeCount > 20 {
		return errors.New("backup code count must be between 1 and 20")
	}
	if c.TOTP.BackupCodeLength < 8 || c.TOTP.BackupCodeLength > 32 {
		return errors.New("backup code length must be between 8 and 32")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Registration.Enabled && c.Registration.DefaultRole == "" {
		return errors.New("registration requires a default role")
	}
	if c.APIKey.Prefix == "" || strings.ContainsAny(c.APIKey.Prefix, "_ \t") {
		return errors.New("invalid api key prefix")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must be >= 0")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg

	out.JWT.PrivateKey = append([]byte(nil), cfg.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), cfg.JWT.PublicKey...)

	if cfg.Scopes.RoleScopes != nil {
		scopes := make(map[string][]string, len(cfg.Scopes.RoleScopes))
		for role, set := range cfg.Scopes.RoleScopes {
			scopes[role] = append([]string(nil), set...)
		}
		out.Scopes.RoleScopes = scopes
	}

	return out
}
