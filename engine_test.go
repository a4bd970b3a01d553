package goIdent

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeClock is a mutable time source shared by the engine and the test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testStore is an in-memory CredentialStore fixture. A store-wide mutex
// provides the per-record atomicity the interface demands.
type testStore struct {
	mu           sync.Mutex
	users        map[string]*User
	refresh      map[string]*RefreshToken
	apiKeys      map[string]*APIKey
	backupCodes  map[string][]string
	usedTokenIDs map[string]struct{}
	clock        Clock
}

func newTestStore(clock Clock) *testStore {
	return &testStore{
		users:        make(map[string]*User),
		refresh:      make(map[string]*RefreshToken),
		apiKeys:      make(map[string]*APIKey),
		backupCodes:  make(map[string][]string),
		usedTokenIDs: make(map[string]struct{}),
		clock:        clock,
	}
}

func (s *testStore) GetUserByIdentifier(_ context.Context, identifier string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *testStore) GetUserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *testStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
		if strings.EqualFold(u.Username, user.Username) {
			return ErrDuplicateUsername
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *testStore) SaveUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *testStore) GetRefreshToken(_ context.Context, tokenHash string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *testStore) SaveRefreshToken(_ context.Context, token *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.refresh[token.TokenHash] = &cp
	return nil
}

func (s *testStore) RotateRefreshToken(_ context.Context, tokenHash string, successor *RefreshToken) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.refresh[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	if current.Revoked {
		return nil, ErrTokenRevoked
	}
	now := s.clock.Now()
	current.Revoked = true
	current.RevokedAt = now
	current.RevokedReason = "rotation"
	current.UseCount++
	cp := *successor
	s.refresh[successor.TokenHash] = &cp
	out := *current
	return &out, nil
}

func (s *testStore) FindRefreshTokensByUser(_ context.Context, userID string) ([]*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*RefreshToken
	for _, t := range s.refresh {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *testStore) RevokeRefreshTokensByFamily(_ context.Context, familyID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, t := range s.refresh {
		if t.FamilyID == familyID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = now
			t.RevokedReason = reason
		}
	}
	return nil
}

func (s *testStore) RevokeRefreshTokensByUser(_ context.Context, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, t := range s.refresh {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = now
			t.RevokedReason = reason
		}
	}
	return nil
}

func (s *testStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[keyHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *testStore) SaveAPIKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.apiKeys[key.KeyHash] = &cp
	return nil
}

func (s *testStore) FindAPIKeysByUser(_ context.Context, userID string) ([]*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*APIKey
	for _, k := range s.apiKeys {
		if k.UserID == userID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *testStore) GetBackupCodeHashes(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.backupCodes[userID]...), nil
}

func (s *testStore) ReplaceBackupCodes(_ context.Context, userID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(hashes) == 0 {
		delete(s.backupCodes, userID)
		return nil
	}
	s.backupCodes[userID] = append([]string(nil), hashes...)
	return nil
}

func (s *testStore) ConsumeBackupCode(_ context.Context, userID string, match func(hash string) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hashes := s.backupCodes[userID]
	for i, h := range hashes {
		if match(h) {
			s.backupCodes[userID] = append(hashes[:i:i], hashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *testStore) ConsumeTokenID(_ context.Context, jti string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, used := s.usedTokenIDs[jti]; used {
		return false, nil
	}
	s.usedTokenIDs[jti] = struct{}{}
	return true, nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.Issuer = "goident-test"
	cfg.JWT.Leeway = 0
	// cheapest parameters the hasher accepts, tests hash a lot
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.TOTP.Skew = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *testStore, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	store := newTestStore(clock)
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, store, clock
}

// seedUser creates an active account directly in the store, bypassing the
// registration flow.
func seedUser(t *testing.T, e *Engine, store *testStore, email, username, plaintext string) *User {
	t.Helper()

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	now := e.now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         "user",
		Status:       AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// codeAt derives the TOTP code for the secret at the given instant, offset by
// steps periods.
func codeAt(t *testing.T, secret []byte, cfg TOTPConfig, at time.Time, steps int64) string {
	t.Helper()

	counter := at.Unix()/int64(cfg.Period) + steps
	code, err := hotpCode(secret, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
