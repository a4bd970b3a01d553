package goIdent

import (
	"fmt"
	"net/mail"
	"strings"
)

// Input validation runs before any store access so malformed requests never
// reach persistence. Failures wrap ErrValidation (or ErrPasswordPolicy for
// password rules) and name the offending field.

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	maxEmailLength    = 254
	maxPasswordBytes  = 1024
)

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxEmailLength {
		return fmt.Errorf("%w: email", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email", ErrValidation)
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username", ErrValidation)
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return fmt.Errorf("%w: username", ErrValidation)
		}
	}
	return nil
}

func (e *Engine) validatePassword(plaintext string) error {
	if len(plaintext) < e.config.Password.MinLength {
		return fmt.Errorf("%w: minimum length %d", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if len(plaintext) > maxPasswordBytes {
		return fmt.Errorf("%w: password too long", ErrPasswordPolicy)
	}
	return nil
}
