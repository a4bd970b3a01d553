package goIdent

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdent/jwt"
)

// AccessIdentity is the verified content of an access token: the subject, the
// scope set granted at issuance, and the session family the token belongs to.
type AccessIdentity struct {
	UserID    string
	Scopes    []string
	FamilyID  string
	ExpiresAt time.Time
}

// HasScope reports whether the token grants the named scope. The "admin"
// scope is a wildcard.
func (a *AccessIdentity) HasScope(scope string) bool {
	if a == nil {
		return false
	}
	for _, s := range a.Scopes {
		if s == ScopeAdmin || s == scope {
			return true
		}
	}
	return false
}

// ValidateAccessToken verifies an access token's signature, expiry, and type
// without touching the store. Revocation is enforced at refresh time; access
// tokens stay valid until they expire, which is why their TTL is short.
func (e *Engine) ValidateAccessToken(_ context.Context, tokenStr string) (*AccessIdentity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.Parse(tokenStr, jwt.TypeAccess)
	if err != nil {
		return nil, mapTokenError(err)
	}
	return &AccessIdentity{
		UserID:    claims.Subject,
		Scopes:    append([]string(nil), claims.Scopes...),
		FamilyID:  claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
