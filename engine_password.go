package goIdent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdent/jwt"
)

// ChangePassword verifies the current password, stores a fresh hash of the
// new one, and revokes every refresh token for the user. Forcing re-login
// everywhere bounds the blast radius of a compromised credential.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return storeErr(err)
	}

	if !e.hasher.Verify(current, user.PasswordHash) {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "current_password_mismatch"}
		})
		return ErrInvalidCredentials
	}
	if err := e.validatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == current {
		return fmt.Errorf("%w: new password must differ from current", ErrPasswordPolicy)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return storeErr(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = e.now()
	if err := e.store.SaveUser(ctx, user); err != nil {
		return storeErr(err)
	}

	if err := e.store.RevokeRefreshTokensByUser(ctx, userID, "password_change"); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, "", "", nil, nil)
	return nil
}

// ForgotPassword issues a single-use password-reset token for the account
// behind email. The caller delivers it out of band. Unknown addresses return
// an empty token with no error so the API cannot be used to enumerate
// accounts.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	user, err := e.store.GetUserByIdentifier(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", storeErr(err)
	}

	token, _, err := e.jwtManager.Create(jwt.TypePasswordReset, user.ID, nil, "", e.config.JWT.PasswordResetTTL)
	if err != nil {
		return "", storeErr(err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", "", nil, nil)
	return token, nil
}

// ResetPassword redeems a password-reset token and stores the new password.
// The token is single-use under concurrent redemption: of two racing resets
// carrying the same token, exactly one succeeds. A successful reset clears
// any lockout and revokes every refresh token for the user.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(resetToken, jwt.TypePasswordReset)
	if err != nil {
		return mapTokenError(err)
	}

	if err := e.validatePassword(newPassword); err != nil {
		return err
	}

	fresh, err := e.store.ConsumeTokenID(ctx, claims.ID, e.config.JWT.PasswordResetTTL)
	if err != nil {
		return storeErr(err)
	}
	if !fresh {
		e.emitAudit(ctx, auditEventPasswordResetReplay, false, claims.Subject, "", "", ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenInvalid
		}
		return storeErr(err)
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return storeErr(err)
	}
	user.PasswordHash = hash
	e.lockout.recordSuccess(user)
	user.UpdatedAt = e.now()
	if err := e.store.SaveUser(ctx, user); err != nil {
		return storeErr(err)
	}

	if err := e.store.RevokeRefreshTokensByUser(ctx, user.ID, "password_reset"); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, "", "", nil, nil)
	return nil
}
