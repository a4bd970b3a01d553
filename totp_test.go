package goIdent

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/MrEthical07/goIdent/internal"
)

// Appendix B of RFC 6238. The SHA-256 and SHA-512 rows use the longer seeds
// the RFC prescribes per algorithm.
func TestHOTPCodeRFC6238Vectors(t *testing.T) {
	seed20 := []byte("12345678901234567890")
	seed32 := []byte("12345678901234567890123456789012")
	seed64 := []byte("1234567890123456789012345678901234567890123456789012345678901234")

	cases := []struct {
		unix      int64
		algorithm string
		secret    []byte
		want      string
	}{
		{59, "SHA1", seed20, "94287082"},
		{59, "SHA256", seed32, "46119246"},
		{59, "SHA512", seed64, "90693936"},
		{1111111109, "SHA1", seed20, "07081804"},
		{1111111111, "SHA1", seed20, "14050471"},
		{1234567890, "SHA1", seed20, "89005924"},
		{2000000000, "SHA1", seed20, "69279037"},
		{20000000000, "SHA1", seed20, "65353130"},
	}

	for _, tc := range cases {
		counter := tc.unix / 30
		got, err := hotpCode(tc.secret, counter, 8, tc.algorithm)
		if err != nil {
			t.Fatalf("hotpCode(%d, %s) failed: %v", tc.unix, tc.algorithm, err)
		}
		if got != tc.want {
			t.Errorf("hotpCode(%d, %s) = %s, want %s", tc.unix, tc.algorithm, got, tc.want)
		}
	}
}

// Cross-check against pquerna/otp so a drift in our implementation does not
// lock users of standard authenticator apps out.
func TestTOTPMatchesReferenceImplementation(t *testing.T) {
	secret, err := internal.NewSecret(20)
	if err != nil {
		t.Fatalf("NewSecret failed: %v", err)
	}
	encoded := internal.EncodeSecret(secret)

	manager := newTOTPManager(TOTPConfig{Issuer: "x", Digits: 6, Period: 30, Skew: 0, Algorithm: "SHA1"})

	for _, at := range []time.Time{
		time.Unix(59, 0),
		time.Unix(1111111111, 0),
		time.Now(),
	} {
		reference, err := totp.GenerateCodeCustom(encoded, at, totp.ValidateOpts{
			Period:    30,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			t.Fatalf("reference GenerateCodeCustom failed: %v", err)
		}

		ok, err := manager.VerifyCode(secret, reference, at)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if !ok {
			t.Fatalf("reference code %s at %v not accepted", reference, at)
		}
	}
}

func TestVerifyCodeSkewWindow(t *testing.T) {
	secret := []byte("12345678901234567890")
	manager := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 2, Algorithm: "SHA1"})
	now := time.Unix(2000000000, 0)

	for steps := int64(-2); steps <= 2; steps++ {
		code, err := hotpCode(secret, now.Unix()/30+steps, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, err := manager.VerifyCode(secret, code, now)
		if err != nil || !ok {
			t.Fatalf("steps=%d: expected code accepted, ok=%v err=%v", steps, ok, err)
		}
	}

	for _, steps := range []int64{-3, 3} {
		code, err := hotpCode(secret, now.Unix()/30+steps, 6, "SHA1")
		if err != nil {
			t.Fatalf("hotpCode failed: %v", err)
		}
		ok, err := manager.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode failed: %v", err)
		}
		if ok {
			t.Fatalf("steps=%d: expected code outside the window rejected", steps)
		}
	}
}

func TestVerifyCodeRejectsMalformedInput(t *testing.T) {
	secret := []byte("12345678901234567890")
	manager := newTOTPManager(TOTPConfig{Digits: 6, Period: 30, Skew: 1, Algorithm: "SHA1"})
	now := time.Unix(2000000000, 0)

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		ok, err := manager.VerifyCode(secret, code, now)
		if err != nil {
			t.Fatalf("VerifyCode(%q) failed: %v", code, err)
		}
		if ok {
			t.Fatalf("expected %q rejected", code)
		}
	}

	if _, err := manager.VerifyCode(nil, "123456", now); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestProvisionURI(t *testing.T) {
	manager := newTOTPManager(TOTPConfig{Issuer: "goIdent", Digits: 6, Period: 30, Algorithm: "SHA1"})
	uri := manager.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com")

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		t.Fatalf("reference parser rejected URI %q: %v", uri, err)
	}
	if key.Secret() != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("unexpected secret %q", key.Secret())
	}
	if key.Issuer() != "goIdent" {
		t.Fatalf("unexpected issuer %q", key.Issuer())
	}
}
