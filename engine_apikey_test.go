package goIdent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateAPIKeyReturnsPlaintextOnce(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "ci", Scopes: []string{"read"}})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(result.Plaintext, "gid_") {
		t.Fatalf("expected configured prefix, got %q", result.Plaintext)
	}
	if result.Key.KeyHash == result.Plaintext {
		t.Fatal("plaintext must not be persisted")
	}
	if !strings.HasPrefix(result.Plaintext, result.Key.Prefix) {
		t.Fatalf("visible prefix %q does not match key %q", result.Key.Prefix, result.Plaintext)
	}
	if len(result.Key.Prefix) >= len(result.Plaintext) {
		t.Fatal("visible prefix must truncate the key")
	}
}

func TestValidateAPIKey(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "ci", Scopes: []string{"read"}})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	identity, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, "", "")
	if err != nil {
		t.Fatalf("ValidateAPIKey failed: %v", err)
	}
	if identity.User.ID != user.ID {
		t.Fatalf("expected owner %q, got %q", user.ID, identity.User.ID)
	}
	if len(identity.Scopes) != 1 || identity.Scopes[0] != "read" {
		t.Fatalf("expected scopes [read], got %v", identity.Scopes)
	}

	if _, err := engine.ValidateAPIKey(context.Background(), "gid_totally-made-up", "", ""); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected ErrAPIKeyInvalid for unknown key, got %v", err)
	}

	keys, err := engine.ListAPIKeys(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListAPIKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0].UseCount != 1 {
		t.Fatalf("expected one key with use count 1, got %+v", keys)
	}
}

func TestAPIKeyScopesCappedByRole(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	if _, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "esc", Scopes: []string{"admin"}}); !errors.Is(err, ErrScopeNotAllowed) {
		t.Fatalf("expected ErrScopeNotAllowed, got %v", err)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if err := engine.RevokeAPIKey(context.Background(), user.ID, result.Key.ID); err != nil {
		t.Fatalf("RevokeAPIKey failed: %v", err)
	}
	// revocation is idempotent, unknown ids are not
	if err := engine.RevokeAPIKey(context.Background(), user.ID, result.Key.ID); err != nil {
		t.Fatalf("second RevokeAPIKey failed: %v", err)
	}
	if err := engine.RevokeAPIKey(context.Background(), user.ID, "no-such-key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, "", ""); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected revoked key rejected, got %v", err)
	}
}

func TestAPIKeyExpiresLazily(t *testing.T) {
	engine, store, clock := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{
		Name:      "short-lived",
		ExpiresAt: clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, "", ""); err != nil {
		t.Fatalf("ValidateAPIKey before expiry failed: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, "", ""); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected expired key rejected, got %v", err)
	}

	stored, err := store.GetAPIKeyByHash(context.Background(), result.Key.KeyHash)
	if err != nil {
		t.Fatalf("GetAPIKeyByHash failed: %v", err)
	}
	if stored.Status != APIKeyExpired {
		t.Fatalf("expected status flipped to expired, got %v", stored.Status)
	}
}

func TestAPIKeyIPWhitelist(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{
		Name:        "internal",
		IPWhitelist: []string{"203.0.113.7", "10.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	for _, ip := range []string{"203.0.113.7", "10.1.2.3"} {
		if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, ip, ""); err != nil {
			t.Fatalf("ip %s: ValidateAPIKey failed: %v", ip, err)
		}
	}
	for _, ip := range []string{"", "198.51.100.1"} {
		if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, ip, ""); !errors.Is(err, ErrAPIKeyInvalid) {
			t.Fatalf("ip %q: expected ErrAPIKeyInvalid, got %v", ip, err)
		}
	}
}

func TestAPIKeyRejectsInactiveOwner(t *testing.T) {
	engine, store, _ := newTestEngine(t, testConfig())
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	result, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("CreateAPIKey failed: %v", err)
	}

	user.Status = AccountSuspended
	if err := store.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}

	if _, err := engine.ValidateAPIKey(context.Background(), result.Plaintext, "", ""); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected key of suspended owner rejected, got %v", err)
	}
}

func TestAPIKeyPerUserLimit(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey.MaxKeysPerUser = 2
	engine, store, _ := newTestEngine(t, cfg)
	user := seedUser(t, engine, store, "alice@example.com", "alice", "correct-password-123")

	var last *CreateAPIKeyResult
	for i := 0; i < 2; i++ {
		var err error
		last, err = engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "k"})
		if err != nil {
			t.Fatalf("CreateAPIKey %d failed: %v", i, err)
		}
	}
	if _, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "over"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation at the key limit, got %v", err)
	}

	// revoked keys free their slot
	if err := engine.RevokeAPIKey(context.Background(), user.ID, last.Key.ID); err != nil {
		t.Fatalf("RevokeAPIKey failed: %v", err)
	}
	if _, err := engine.CreateAPIKey(context.Background(), user.ID, CreateAPIKeyRequest{Name: "replacement"}); err != nil {
		t.Fatalf("CreateAPIKey after revoke failed: %v", err)
	}
}
