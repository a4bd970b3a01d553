package goIdent

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdent/internal"
	"github.com/MrEthical07/goIdent/internal/rate"
)

// Refresh rotates an opaque refresh token: the presented token is revoked
// with reason "rotation" and a successor in the same family is issued
// alongside a fresh access token.
//
// Presenting an already-rotated token is treated as replay of a stolen
// token: every token in the family is revoked and the caller must fully
// re-authenticate.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, device DeviceInfo) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	hash := internal.HashToken(refreshToken)
	record, err := e.store.GetRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", device.IP, ErrTokenInvalid, nil)
			return nil, ErrTokenInvalid
		}
		return nil, storeErr(err)
	}

	now := e.now()
	if record.Revoked {
		return nil, e.handleRefreshReplay(ctx, record, device)
	}
	if !now.Before(record.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.UserID, record.FamilyID, device.IP, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	}

	if e.limiter != nil {
		if err := e.limiter.CheckRefresh(ctx, record.FamilyID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRefreshFailure)
				return nil, ErrLoginRateLimited
			}
			e.warnStore("throttle.check_refresh", err)
		}
	}

	user, err := e.store.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, storeErr(err)
	}
	if user.Status != AccountActive {
		if err := e.store.RevokeRefreshTokensByFamily(ctx, record.FamilyID, "account_status"); err != nil {
			e.warnStore("revoke_family", err)
		}
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, record.FamilyID, device.IP, ErrAccountNotActive, nil)
		return nil, ErrAccountNotActive
	}

	scopes, err := e.resolveScopes(user.Role, nil)
	if err != nil {
		return nil, err
	}

	if device.IP == "" && device.Name == "" {
		device = record.Device
	}
	pair, successor, err := e.issueTokenPair(ctx, user, scopes, device, record.FamilyID, record.ID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.RotateRefreshToken(ctx, hash, successor); err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			// lost the race against a concurrent rotation of the same token
			return nil, e.handleRefreshReplay(ctx, record, device)
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, storeErr(err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, record.FamilyID, device.IP, nil, nil)
	return pair, nil
}

// handleRefreshReplay contains the compromise response: revoke the whole
// family so neither the legitimate client nor the thief keeps a usable
// token, and emit the security signal.
func (e *Engine) handleRefreshReplay(ctx context.Context, record *RefreshToken, device DeviceInfo) error {
	if err := e.store.RevokeRefreshTokensByFamily(ctx, record.FamilyID, "replay"); err != nil {
		e.warnStore("revoke_family", err)
	}
	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, record.UserID, record.FamilyID, device.IP, ErrTokenRevoked, func() map[string]string {
		return map[string]string{"revoked_reason": record.RevokedReason}
	})
	return ErrTokenRevoked
}
