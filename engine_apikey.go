package goIdent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/goIdent/internal"
)

// CreateAPIKey mints a scoped service-to-service key for the user. The
// returned plaintext is shown exactly once; only its hash and a short visible
// prefix are persisted. Scopes must be a subset of the owner's role scopes
// and are immutable afterwards — regeneration means a new key.
func (e *Engine) CreateAPIKey(ctx context.Context, userID string, req CreateAPIKeyRequest) (*CreateAPIKeyResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name", ErrValidation)
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	scopes, err := e.resolveScopes(user.Role, req.Scopes)
	if err != nil {
		return nil, err
	}

	if e.config.APIKey.MaxKeysPerUser > 0 {
		existing, err := e.store.FindAPIKeysByUser(ctx, userID)
		if err != nil {
			return nil, storeErr(err)
		}
		live := 0
		for _, k := range existing {
			if k.Status == APIKeyActive {
				live++
			}
		}
		if live >= e.config.APIKey.MaxKeysPerUser {
			return nil, fmt.Errorf("%w: key limit reached", ErrValidation)
		}
	}

	plaintext, hash, visible, err := internal.NewAPIKey(e.config.APIKey.Prefix)
	if err != nil {
		return nil, storeErr(err)
	}

	rateLimit := req.RateLimitPerHour
	if rateLimit <= 0 {
		rateLimit = e.config.APIKey.DefaultRateLimitPerHour
	}

	key := &APIKey{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              req.Name,
		KeyHash:           hash,
		Prefix:            visible,
		Status:            APIKeyActive,
		Scopes:            scopes,
		ExpiresAt:         req.ExpiresAt,
		RateLimitPerHour:  rateLimit,
		IPWhitelist:       append([]string(nil), req.IPWhitelist...),
		ReferrerWhitelist: append([]string(nil), req.ReferrerWhitelist...),
		CreatedAt:         e.now(),
	}
	if err := e.store.SaveAPIKey(ctx, key); err != nil {
		return nil, storeErr(err)
	}

	e.emitAudit(ctx, auditEventAPIKeyCreated, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"key_id": key.ID, "name": key.Name}
	})
	return &CreateAPIKeyResult{Key: key, Plaintext: plaintext}, nil
}

// ValidateAPIKey authenticates a presented key and returns the owning user
// plus the key's declared scopes for the caller to enforce. IP and referrer
// allowlists only apply when configured on the key. Every failure mode
// returns the same [ErrAPIKeyInvalid].
func (e *Engine) ValidateAPIKey(ctx context.Context, plaintext, ip, referrer string) (*APIKeyIdentity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	key, err := e.store.GetAPIKeyByHash(ctx, internal.HashToken(plaintext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.denyAPIKey(ctx, "", "", ip, "unknown_key")
			return nil, ErrAPIKeyInvalid
		}
		return nil, storeErr(err)
	}

	now := e.now()
	switch key.Status {
	case APIKeyActive:
	case APIKeyExpired:
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, "expired")
		return nil, ErrAPIKeyInvalid
	default:
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, key.Status.String())
		return nil, ErrAPIKeyInvalid
	}
	if !key.ExpiresAt.IsZero() && !now.Before(key.ExpiresAt) {
		key.Status = APIKeyExpired
		if err := e.store.SaveAPIKey(ctx, key); err != nil {
			e.warnStore("api_key.expire", err)
		}
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, "expired")
		return nil, ErrAPIKeyInvalid
	}

	if len(key.IPWhitelist) > 0 && !ipAllowed(ip, key.IPWhitelist) {
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, "ip_not_whitelisted")
		return nil, ErrAPIKeyInvalid
	}
	if len(key.ReferrerWhitelist) > 0 && !referrerAllowed(referrer, key.ReferrerWhitelist) {
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, "referrer_not_whitelisted")
		return nil, ErrAPIKeyInvalid
	}

	user, err := e.store.GetUserByID(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.denyAPIKey(ctx, key.UserID, key.ID, ip, "owner_missing")
			return nil, ErrAPIKeyInvalid
		}
		return nil, storeErr(err)
	}
	if user.Status != AccountActive {
		e.denyAPIKey(ctx, key.UserID, key.ID, ip, "owner_"+user.Status.String())
		return nil, ErrAPIKeyInvalid
	}

	key.UseCount++
	key.LastUsedAt = now
	if err := e.store.SaveAPIKey(ctx, key); err != nil {
		// usage bookkeeping must not fail an otherwise valid key
		e.warnStore("api_key.usage", err)
	}

	e.metricInc(MetricAPIKeyValidated)
	return &APIKeyIdentity{
		User:   user,
		KeyID:  key.ID,
		Scopes: append([]string(nil), key.Scopes...),
	}, nil
}

// RevokeAPIKey permanently revokes one of the user's keys.
func (e *Engine) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	keys, err := e.store.FindAPIKeysByUser(ctx, userID)
	if err != nil {
		return storeErr(err)
	}
	for _, key := range keys {
		if key.ID != keyID {
			continue
		}
		if key.Status == APIKeyRevoked {
			return nil
		}
		key.Status = APIKeyRevoked
		if err := e.store.SaveAPIKey(ctx, key); err != nil {
			return storeErr(err)
		}
		e.emitAudit(ctx, auditEventAPIKeyRevoked, true, userID, "", "", nil, func() map[string]string {
			return map[string]string{"key_id": keyID}
		})
		return nil
	}
	return ErrNotFound
}

// ListAPIKeys returns the user's keys. Records carry only the visible prefix,
// never recoverable key material.
func (e *Engine) ListAPIKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	keys, err := e.store.FindAPIKeysByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return keys, nil
}

func (e *Engine) denyAPIKey(ctx context.Context, userID, keyID, ip, reason string) {
	e.metricInc(MetricAPIKeyDenied)
	e.emitAudit(ctx, auditEventAPIKeyDenied, false, userID, "", ip, ErrAPIKeyInvalid, func() map[string]string {
		return map[string]string{"key_id": keyID, "reason": reason}
	})
}

// ipAllowed matches either exact addresses or CIDR entries.
func ipAllowed(ip string, whitelist []string) bool {
	if ip == "" {
		return false
	}
	parsed := net.ParseIP(ip)
	for _, entry := range whitelist {
		if entry == ip {
			return true
		}
		if parsed != nil && strings.Contains(entry, "/") {
			if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(parsed) {
				return true
			}
		}
	}
	return false
}

// referrerAllowed matches by suffix so "example.com" covers subdomain
// referrers as well.
func referrerAllowed(referrer string, whitelist []string) bool {
	if referrer == "" {
		return false
	}
	referrer = strings.ToLower(referrer)
	for _, entry := range whitelist {
		entry = strings.ToLower(entry)
		if referrer == entry || strings.HasSuffix(referrer, "."+entry) || strings.HasSuffix(referrer, entry) {
			return true
		}
	}
	return false
}
