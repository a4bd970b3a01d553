package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goIdent"
)

var _ goIdent.CredentialStore = (*Store)(nil)

// Store is an in-memory [goIdent.CredentialStore]. The zero value is not
// usable; construct with [New].
type Store struct {
	mu sync.Mutex

	clock goIdent.Clock

	usersByID         map[string]*goIdent.User
	userIDsByEmail    map[string]string
	userIDsByUsername map[string]string

	refreshByHash map[string]*goIdent.RefreshToken

	apiKeysByHash map[string]*goIdent.APIKey

	backupHashes map[string][]string

	usedTokenIDs map[string]time.Time
}

// New returns an empty store using the system clock for token-ID expiry.
func New() *Store {
	return NewWithClock(goIdent.SystemClock{})
}

// NewWithClock returns an empty store with an injected clock, so tests can
// advance time past ConsumeTokenID retention.
func NewWithClock(clock goIdent.Clock) *Store {
	return &Store{
		clock:             clock,
		usersByID:         make(map[string]*goIdent.User),
		userIDsByEmail:    make(map[string]string),
		userIDsByUsername: make(map[string]string),
		refreshByHash:     make(map[string]*goIdent.RefreshToken),
		apiKeysByHash:     make(map[string]*goIdent.APIKey),
		backupHashes:      make(map[string][]string),
		usedTokenIDs:      make(map[string]time.Time),
	}
}

func (s *Store) GetUserByIdentifier(_ context.Context, identifier string) (*goIdent.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lowered := strings.ToLower(identifier)
	id, ok := s.userIDsByEmail[lowered]
	if !ok {
		id, ok = s.userIDsByUsername[lowered]
	}
	if !ok {
		return nil, goIdent.ErrNotFound
	}
	return copyUser(s.usersByID[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*goIdent.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, goIdent.ErrNotFound
	}
	return copyUser(user), nil
}

func (s *Store) CreateUser(_ context.Context, user *goIdent.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	username := strings.ToLower(user.Username)
	if _, exists := s.userIDsByEmail[email]; exists {
		return goIdent.ErrDuplicateEmail
	}
	if _, exists := s.userIDsByUsername[username]; exists {
		return goIdent.ErrDuplicateUsername
	}

	s.usersByID[user.ID] = copyUser(user)
	s.userIDsByEmail[email] = user.ID
	s.userIDsByUsername[username] = user.ID
	return nil
}

func (s *Store) SaveUser(_ context.Context, user *goIdent.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[user.ID]; !ok {
		return goIdent.ErrNotFound
	}
	s.usersByID[user.ID] = copyUser(user)
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (*goIdent.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.refreshByHash[tokenHash]
	if !ok {
		return nil, goIdent.ErrNotFound
	}
	return copyRefreshToken(token), nil
}

func (s *Store) SaveRefreshToken(_ context.Context, token *goIdent.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshByHash[token.TokenHash] = copyRefreshToken(token)
	return nil
}

func (s *Store) RotateRefreshToken(_ context.Context, tokenHash string, successor *goIdent.RefreshToken) (*goIdent.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refreshByHash[tokenHash]
	if !ok {
		return nil, goIdent.ErrNotFound
	}
	if current.Revoked {
		return nil, goIdent.ErrTokenRevoked
	}

	now := s.clock.Now()
	current.Revoked = true
	current.RevokedAt = now
	current.RevokedReason = "rotation"
	current.LastUsedAt = now
	current.UseCount++

	s.refreshByHash[successor.TokenHash] = copyRefreshToken(successor)
	return copyRefreshToken(current), nil
}

func (s *Store) FindRefreshTokensByUser(_ context.Context, userID string) ([]*goIdent.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*goIdent.RefreshToken
	for _, token := range s.refreshByHash {
		if token.UserID == userID {
			out = append(out, copyRefreshToken(token))
		}
	}
	return out, nil
}

func (s *Store) RevokeRefreshTokensByFamily(_ context.Context, familyID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, token := range s.refreshByHash {
		if token.FamilyID == familyID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = now
			token.RevokedReason = reason
		}
	}
	return nil
}

func (s *Store) RevokeRefreshTokensByUser(_ context.Context, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, token := range s.refreshByHash {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = now
			token.RevokedReason = reason
		}
	}
	return nil
}

func (s *Store) GetAPIKeyByHash(_ context.Context, keyHash string) (*goIdent.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeysByHash[keyHash]
	if !ok {
		return nil, goIdent.ErrNotFound
	}
	return copyAPIKey(key), nil
}

func (s *Store) SaveAPIKey(_ context.Context, key *goIdent.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apiKeysByHash[key.KeyHash] = copyAPIKey(key)
	return nil
}

func (s *Store) FindAPIKeysByUser(_ context.Context, userID string) ([]*goIdent.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*goIdent.APIKey
	for _, key := range s.apiKeysByHash {
		if key.UserID == userID {
			out = append(out, copyAPIKey(key))
		}
	}
	return out, nil
}

func (s *Store) GetBackupCodeHashes(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.backupHashes[userID]...), nil
}

func (s *Store) ReplaceBackupCodes(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(hashes) == 0 {
		delete(s.backupHashes, userID)
		return nil
	}
	s.backupHashes[userID] = append([]string(nil), hashes...)
	return nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID string, match func(hash string) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := s.backupHashes[userID]
	for i, hash := range hashes {
		if match(hash) {
			s.backupHashes[userID] = append(hashes[:i:i], hashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ConsumeTokenID(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for id, expires := range s.usedTokenIDs {
		if !now.Before(expires) {
			delete(s.usedTokenIDs, id)
		}
	}

	if _, used := s.usedTokenIDs[jti]; used {
		return false, nil
	}
	s.usedTokenIDs[jti] = now.Add(ttl)
	return true, nil
}

func copyUser(u *goIdent.User) *goIdent.User {
	cp := *u
	cp.TwoFactorSecret = append([]byte(nil), u.TwoFactorSecret...)
	return &cp
}

func copyRefreshToken(t *goIdent.RefreshToken) *goIdent.RefreshToken {
	cp := *t
	return &cp
}

func copyAPIKey(k *goIdent.APIKey) *goIdent.APIKey {
	cp := *k
	cp.Scopes = append([]string(nil), k.Scopes...)
	cp.IPWhitelist = append([]string(nil), k.IPWhitelist...)
	cp.ReferrerWhitelist = append([]string(nil), k.ReferrerWhitelist...)
	return &cp
}
