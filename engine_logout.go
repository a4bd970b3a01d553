package goIdent

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdent/internal"
)

// Logout revokes the presented refresh token with reason "logout". Revoking
// an already-revoked or unknown token is not an error; logout is idempotent.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	record, err := e.store.GetRefreshToken(ctx, internal.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return storeErr(err)
	}
	if record.UserID != userID {
		// never revoke another user's token through this path
		return ErrTokenInvalid
	}
	if record.Revoked {
		return nil
	}

	now := e.now()
	record.Revoked = true
	record.RevokedAt = now
	record.RevokedReason = "logout"
	if err := e.store.SaveRefreshToken(ctx, record); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, record.FamilyID, record.Device.IP, nil, nil)
	return nil
}

// LogoutAll revokes every live refresh token belonging to the user with
// reason "logout_all", forcing re-authentication everywhere.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	if err := e.store.RevokeRefreshTokensByUser(ctx, userID, "logout_all"); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", "", nil, nil)
	return nil
}
