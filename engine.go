package goIdent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdent/internal"
	"github.com/MrEthical07/goIdent/internal/rate"
	"github.com/MrEthical07/goIdent/jwt"
	"github.com/MrEthical07/goIdent/password"
	"go.uber.org/zap"
)

// Engine composes the credential store, password hasher, TOTP engine, token
// service, and account security policy into the authentication flows. Build
// one through [Builder]; it is safe for concurrent use afterwards.
type Engine struct {
	config     Config
	store      CredentialStore
	clock      Clock
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	totp       *totpManager
	lockout    *lockoutPolicy
	limiter    *rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *zap.Logger
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many events the dispatcher discarded because its
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock.Now()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.jwtManager != nil
}

// storeErr maps transport-level store failures to ErrStoreUnavailable while
// passing through the taxonomy sentinels unchanged.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrDuplicateUsername):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// issueTokenPair mints an access token and a fresh refresh-token record. When
// familyID is empty a new family is started (login, registration); rotation
// passes the existing family and parent id through.
func (e *Engine) issueTokenPair(ctx context.Context, user *User, scopes []string, device DeviceInfo, familyID, parentID string) (*TokenPair, *RefreshToken, error) {
	now := e.now()

	if familyID == "" {
		familyID = internal.NewFamilyID()
	}

	access, claims, err := e.jwtManager.Create(jwt.TypeAccess, user.ID, scopes, familyID, e.config.JWT.AccessTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: access token signing", ErrInternal)
	}

	value, err := internal.NewRefreshValue()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: refresh token generation", ErrInternal)
	}

	record := &RefreshToken{
		ID:        claims.ID,
		UserID:    user.ID,
		TokenHash: internal.HashToken(value),
		FamilyID:  familyID,
		ParentID:  parentID,
		Device:    device,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
		CreatedAt: now,
	}

	pair := &TokenPair{
		AccessToken:           access,
		RefreshToken:          value,
		AccessTokenExpiresAt:  now.Add(e.config.JWT.AccessTTL),
		RefreshTokenExpiresAt: record.ExpiresAt,
	}
	return pair, record, nil
}

// resolveScopes returns the role's default scope set, or validates that the
// requested scopes are a subset of it. Requested scopes never broaden the
// role's grant.
func (e *Engine) resolveScopes(role string, requested []string) ([]string, error) {
	granted := e.config.Scopes.scopesForRole(role)
	if len(requested) == 0 {
		return append([]string(nil), granted...), nil
	}

	allowed := make(map[string]struct{}, len(granted))
	wildcard := false
	for _, s := range granted {
		allowed[s] = struct{}{}
		if s == ScopeAdmin {
			wildcard = true
		}
	}
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := allowed[s]; !ok && !wildcard {
			return nil, fmt.Errorf("%w: %s", ErrScopeNotAllowed, s)
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) warnStore(op string, err error) {
	if e == nil || e.logger == nil || err == nil {
		return
	}
	e.logger.Warn("goIdent: best-effort store operation failed",
		zap.String("op", op),
		zap.Error(err),
	)
}
