package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"errors"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const refreshSecretSize = 32

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewFamilyID returns a lexicographically sortable identifier for a
// refresh-token family. Sortability keeps families groupable by creation time
// in range scans.
func NewFamilyID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRefreshValue generates an opaque refresh-token value. The caller hands
// the value to the client and persists only HashToken(value).
func NewRefreshValue() (string, error) {
	var raw [refreshSecretSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the hex-encoded SHA-256 digest of an opaque token value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewAPIKey generates a plaintext API key of the form prefix_base64url. It
// returns the plaintext, its SHA-256 hash for storage, and the visible
// prefix persisted for UI identification.
func NewAPIKey(prefix string) (plaintext, hash, visible string, err error) {
	if prefix == "" {
		return "", "", "", errors.New("empty api key prefix")
	}
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", "", "", err
	}
	plaintext = prefix + "_" + base64.RawURLEncoding.EncodeToString(raw[:])
	hash = HashToken(plaintext)

	visible = plaintext
	if len(visible) > len(prefix)+9 {
		visible = visible[:len(prefix)+9]
	}
	return plaintext, hash, visible, nil
}

// backup codes use an unambiguous base32 alphabet (no 0/1/8 lookalikes)
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTVWXYZ23456789"

// NewBackupCodes generates n single-use recovery codes of the given length,
// grouped with a hyphen for readability (for example ABCDE-FGHJK).
func NewBackupCodes(n, length int) ([]string, error) {
	if n < 1 || length < 4 {
		return nil, errors.New("invalid backup code parameters")
	}

	codes := make([]string, 0, n)
	buf := make([]byte, length)
	for i := 0; i < n; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		var b strings.Builder
		b.Grow(length + 1)
		for j, c := range buf {
			if j == length/2 {
				b.WriteByte('-')
			}
			b.WriteByte(backupCodeAlphabet[int(c)%len(backupCodeAlphabet)])
		}
		codes = append(codes, b.String())
	}
	return codes, nil
}

// NormalizeBackupCode strips separators and upcases user input so codes match
// regardless of how they were transcribed.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// NewSecret returns n cryptographically random bytes.
func NewSecret(n int) ([]byte, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// EncodeSecret renders a TOTP secret in base32 without padding, the encoding
// authenticator apps expect in provisioning URIs.
func EncodeSecret(raw []byte) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
}
