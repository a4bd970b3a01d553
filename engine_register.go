package goIdent

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/goIdent/jwt"
)

// Register creates a new account in pending status. With the AutoVerify
// policy enabled the account is activated and a token pair issued
// immediately; otherwise the result carries an email-verification token for
// the host application to deliver. Identity conflicts report which field
// collided.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return nil, errors.New("registration disabled")
	}

	if err := validateEmail(req.Email); err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", req.Device.IP, err, nil)
		return nil, err
	}
	if err := validateUsername(req.Username); err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", req.Device.IP, err, nil)
		return nil, err
	}
	if err := e.validatePassword(req.Password); err != nil {
		e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", req.Device.IP, err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, storeErr(err)
	}

	now := e.now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Role:         e.config.Registration.DefaultRole,
		Status:       AccountPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateUsername) {
			e.emitAudit(ctx, auditEventRegistrationFailure, false, "", "", req.Device.IP, err, func() map[string]string {
				field := "email"
				if errors.Is(err, ErrDuplicateUsername) {
					field = "username"
				}
				return map[string]string{"conflict": field}
			})
			return nil, err
		}
		return nil, storeErr(err)
	}

	e.metricInc(MetricRegistered)
	e.emitAudit(ctx, auditEventRegistered, true, user.ID, "", req.Device.IP, nil, func() map[string]string {
		return map[string]string{"username": user.Username}
	})

	if e.config.Registration.AutoVerify {
		user.Status = AccountActive
		pair, err := e.finishLogin(ctx, user, req.Device, nil)
		if err != nil {
			return nil, err
		}
		return &RegisterResult{User: user, Pair: pair}, nil
	}

	token, _, err := e.jwtManager.Create(jwt.TypeEmailVerification, user.ID, nil, "", e.config.JWT.EmailVerificationTTL)
	if err != nil {
		return nil, storeErr(err)
	}
	return &RegisterResult{User: user, VerificationToken: token}, nil
}

// VerifyEmail redeems a single-use email-verification token and activates
// the pending account.
func (e *Engine) VerifyEmail(ctx context.Context, verificationToken string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(verificationToken, jwt.TypeEmailVerification)
	if err != nil {
		return nil, mapTokenError(err)
	}

	fresh, err := e.store.ConsumeTokenID(ctx, claims.ID, e.config.JWT.EmailVerificationTTL)
	if err != nil {
		return nil, storeErr(err)
	}
	if !fresh {
		return nil, ErrTokenInvalid
	}

	user, err := e.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, storeErr(err)
	}

	if user.Status == AccountPending {
		user.Status = AccountActive
		user.UpdatedAt = e.now()
		if err := e.store.SaveUser(ctx, user); err != nil {
			return nil, storeErr(err)
		}
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, user.ID, "", "", nil, nil)
	return user, nil
}
