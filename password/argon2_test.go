package password

import (
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashVerify(t *testing.T) {
	h := testHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("encoded hash has wrong prefix: %s", encoded)
	}
	if !h.Verify("correct horse battery staple", encoded) {
		t.Fatal("Verify rejected the original password")
	}
	if h.Verify("incorrect horse battery staple", encoded) {
		t.Fatal("Verify accepted a different password")
	}
	if h.Verify("", encoded) {
		t.Fatal("Verify accepted the empty string")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	h := testHasher(t)

	a, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	b, err := h.Hash("same input")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same input are identical")
	}
	if !h.Verify("same input", a) || !h.Verify("same input", b) {
		t.Fatal("Verify rejected one of the hashes")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := testHasher(t)

	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAA==",
		"$argon2id$v=18$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAA==",
		"$argon2id$v=19$m=8192,t=1$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAA==",
		"$argon2id$v=19$m=8192,t=1,p=1$not-base64!$AAAAAAAAAAAAAAAAAAAAAA==",
		"$argon2id$v=19$m=8192,t=1,p=1$AAAA$AAAAAAAAAAAAAAAAAAAAAA==",
	}
	for _, encoded := range cases {
		if h.Verify("anything", encoded) {
			t.Fatalf("Verify accepted malformed hash %q", encoded)
		}
		if !h.NeedsRehash(encoded) {
			t.Fatalf("NeedsRehash(%q) = false, want true", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := testHasher(t)
	encoded, err := weak.Hash("some password here")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if weak.NeedsRehash(encoded) {
		t.Fatal("NeedsRehash reported true for current parameters")
	}

	strong, err := NewHasher(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	if !strong.NeedsRehash(encoded) {
		t.Fatal("NeedsRehash missed a weaker stored hash")
	}

	// hashes made with the tightened parameters still verify under the old
	// hasher because parameters travel with the hash
	upgraded, err := strong.Hash("some password here")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !weak.Verify("some password here", upgraded) {
		t.Fatal("Verify rejected a hash with stronger embedded parameters")
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Memory: 4096, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"time", Config{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 16}},
		{"parallelism", Config{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 16}},
		{"salt", Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}},
		{"key", Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewHasher(tc.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}
