package goIdent

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdent/internal"
	"github.com/MrEthical07/goIdent/internal/rate"
	"github.com/MrEthical07/goIdent/jwt"
)

// Login verifies identifier+password and either issues a token pair or, for
// accounts with two-factor enabled, returns a pending [TwoFactorChallenge].
// Unknown identifiers and wrong passwords both fail with
// [ErrInvalidCredentials]; nothing in the response distinguishes them.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string, device DeviceInfo) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	if e.limiter != nil {
		if err := e.limiter.CheckLogin(ctx, identifier, device.IP); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", device.IP, ErrLoginRateLimited, func() map[string]string {
					return map[string]string{"identifier": identifier}
				})
				return nil, ErrLoginRateLimited
			}
			e.warnStore("throttle.check_login", err)
		}
	}

	user, err := e.store.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.recordLoginFailure(ctx, identifier, device.IP)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", device.IP, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "unknown_identifier"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}

	now := e.now()
	if e.lockout.isLocked(user, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, "", device.IP, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		locked := e.lockout.recordFailure(user, now)
		if err := e.store.SaveUser(ctx, user); err != nil {
			return nil, storeErr(err)
		}
		e.recordLoginFailure(ctx, identifier, device.IP)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", device.IP, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "password_mismatch"}
		})
		if locked {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, false, user.ID, "", device.IP, nil, func() map[string]string {
				return map[string]string{"until": user.LockoutUntil.Format("2006-01-02T15:04:05Z07:00")}
			})
		}
		return nil, ErrInvalidCredentials
	}

	if user.Status != AccountActive {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", device.IP, ErrAccountNotActive, func() map[string]string {
			return map[string]string{"status": user.Status.String()}
		})
		return nil, ErrAccountNotActive
	}

	e.lockout.recordSuccess(user)
	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(user.PasswordHash) {
		if rehashed, err := e.hasher.Hash(plaintext); err == nil {
			user.PasswordHash = rehashed
		}
	}

	if user.TwoFactorEnabled {
		token, claims, err := e.jwtManager.Create(jwt.TypeTwoFactor, user.ID, nil, "", e.config.JWT.TwoFactorTTL)
		if err != nil {
			return nil, storeErr(err)
		}
		if err := e.store.SaveUser(ctx, user); err != nil {
			return nil, storeErr(err)
		}
		e.metricInc(MetricTwoFactorChallenged)
		e.emitAudit(ctx, auditEventMFARequired, true, user.ID, "", device.IP, nil, nil)
		return &LoginResult{
			User: user,
			Challenge: &TwoFactorChallenge{
				Token:     token,
				ExpiresAt: claims.ExpiresAt.Time,
			},
		}, nil
	}

	pair, err := e.finishLogin(ctx, user, device, nil)
	if err != nil {
		return nil, err
	}
	if e.limiter != nil {
		if err := e.limiter.ResetLogin(ctx, identifier, device.IP); err != nil {
			e.warnStore("throttle.reset_login", err)
		}
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// CompleteTwoFactor redeems a pending challenge token together with a TOTP
// code or a single-use backup code and issues the token pair login withheld.
// The challenge token itself is single-use.
func (e *Engine) CompleteTwoFactor(ctx context.Context, twoFactorToken, code string, device DeviceInfo) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(twoFactorToken, jwt.TypeTwoFactor)
	if err != nil {
		return nil, mapTokenError(err)
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, storeErr(err)
	}
	if !user.TwoFactorEnabled || len(user.TwoFactorSecret) == 0 {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, usedBackup, err := e.verifySecondFactor(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, "", device.IP, ErrTwoFactorInvalid, nil)
		return nil, ErrTwoFactorInvalid
	}

	// burn the challenge after the code checks out so a failed code does not
	// consume the user's pending challenge
	fresh, err := e.store.ConsumeTokenID(ctx, claims.ID, e.config.JWT.TwoFactorTTL)
	if err != nil {
		return nil, storeErr(err)
	}
	if !fresh {
		e.emitAudit(ctx, auditEventMFAFailure, false, user.ID, "", device.IP, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "challenge_replay"}
		})
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricTwoFactorSuccess)
	if usedBackup {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, "", device.IP, nil, nil)
	}
	e.emitAudit(ctx, auditEventMFASuccess, true, user.ID, "", device.IP, nil, nil)

	pair, err := e.finishLogin(ctx, user, device, nil)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Pair: pair}, nil
}

// verifySecondFactor checks a TOTP code first and falls back to consuming a
// backup code. Backup-code consumption is atomic in the store; two concurrent
// redemptions of one code cannot both succeed.
func (e *Engine) verifySecondFactor(ctx context.Context, user *User, code string) (ok, usedBackup bool, err error) {
	ok, totpErr := e.totp.VerifyCode(user.TwoFactorSecret, code, e.now())
	if totpErr == nil && ok {
		return true, false, nil
	}

	normalized := internal.NormalizeBackupCode(code)
	if normalized == "" {
		return false, false, nil
	}
	consumed, err := e.store.ConsumeBackupCode(ctx, user.ID, func(hash string) bool {
		return e.hasher.Verify(normalized, hash)
	})
	if err != nil {
		return false, false, storeErr(err)
	}
	return consumed, consumed, nil
}

// finishLogin persists the refresh token, updates last-login bookkeeping, and
// emits the login event.
func (e *Engine) finishLogin(ctx context.Context, user *User, device DeviceInfo, requestedScopes []string) (*TokenPair, error) {
	scopes, err := e.resolveScopes(user.Role, requestedScopes)
	if err != nil {
		return nil, err
	}

	pair, record, err := e.issueTokenPair(ctx, user, scopes, device, "", "")
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveRefreshToken(ctx, record); err != nil {
		return nil, storeErr(err)
	}

	now := e.now()
	user.LastLoginAt = now
	user.LastLoginIP = device.IP
	user.LoginCount++
	if err := e.store.SaveUser(ctx, user); err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, record.FamilyID, device.IP, nil, func() map[string]string {
		return map[string]string{"device": device.Name}
	})
	return pair, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, identifier, ip string) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.RecordLoginFailure(ctx, identifier, ip); err != nil {
		e.warnStore("throttle.record_login_failure", err)
	}
}

// mapTokenError translates jwt package sentinels into the engine taxonomy.
func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTypeMismatch):
		return ErrTokenTypeMismatch
	default:
		return ErrTokenInvalid
	}
}
