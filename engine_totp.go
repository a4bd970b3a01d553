package goIdent

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goIdent/internal"
)

// EnableTwoFactor verifies the password and provisions a TOTP secret. The
// secret is persisted immediately but two-factor stays disabled until the
// user proves possession with [Engine.VerifyTwoFactorSetup].
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, plaintext string) (*TwoFactorSetup, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, storeErr(err)
	}

	user.TwoFactorSecret = raw
	user.UpdatedAt = e.now()
	if err := e.store.SaveUser(ctx, user); err != nil {
		return nil, storeErr(err)
	}

	e.emitAudit(ctx, auditEventTOTPSetupRequested, true, userID, "", "", nil, nil)
	return &TwoFactorSetup{
		Secret: encoded,
		URI:    e.totp.ProvisionURI(encoded, user.Email),
	}, nil
}

// VerifyTwoFactorSetup confirms the pending secret with a live code, enables
// two-factor, and returns the freshly generated backup codes — the only time
// their plaintext is visible. Enabling revokes existing refresh tokens so
// every session re-authenticates under the new requirement.
func (e *Engine) VerifyTwoFactorSetup(ctx context.Context, userID, code string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if len(user.TwoFactorSecret) == 0 {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := e.totp.VerifyCode(user.TwoFactorSecret, code, e.now())
	if err != nil || !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, userID, "", "", ErrTwoFactorInvalid, func() map[string]string {
			return map[string]string{"phase": "setup"}
		})
		return nil, ErrTwoFactorInvalid
	}

	codes, err := e.storeFreshBackupCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.TwoFactorEnabled = true
	user.UpdatedAt = e.now()
	if err := e.store.SaveUser(ctx, user); err != nil {
		return nil, storeErr(err)
	}

	if err := e.store.RevokeRefreshTokensByUser(ctx, userID, "two_factor_enabled"); err != nil {
		e.warnStore("revoke_on_totp_enable", err)
	}

	e.emitAudit(ctx, auditEventTOTPEnabled, true, userID, "", "", nil, nil)
	return codes, nil
}

// DisableTwoFactor verifies the password and removes the secret and all
// backup codes.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, plaintext string) error {
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
	if !user.TwoFactorEnabled && len(user.TwoFactorSecret) == 0 {
		return ErrTwoFactorNotEnabled
	}
	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	user.UpdatedAt = e.now()
	if err := e.store.SaveUser(ctx, user); err != nil {
		return storeErr(err)
	}
	if err := e.store.ReplaceBackupCodes(ctx, userID, nil); err != nil {
		return storeErr(err)
	}

	e.emitAudit(ctx, auditEventTOTPDisabled, true, userID, "", "", nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the stored backup-code set with a fresh one.
// A live TOTP code is required so a hijacked session cannot mint recovery
// codes on its own.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	if !user.TwoFactorEnabled || len(user.TwoFactorSecret) == 0 {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := e.totp.VerifyCode(user.TwoFactorSecret, code, e.now())
	if err != nil || !ok {
		e.metricInc(MetricTwoFactorFailure)
		return nil, ErrTwoFactorInvalid
	}

	return e.storeFreshBackupCodes(ctx, userID)
}

func (e *Engine) storeFreshBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes, err := internal.NewBackupCodes(e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, storeErr(err)
	}

	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hash, err := e.hasher.Hash(internal.NormalizeBackupCode(code))
		if err != nil {
			return nil, storeErr(err)
		}
		hashes = append(hashes, hash)
	}
	if err := e.store.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, storeErr(err)
	}

	e.emitAudit(ctx, auditEventBackupCodesGenerated, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(codes))}
	})
	return codes, nil
}
