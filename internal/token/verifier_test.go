package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

type keypair struct {
	kid  string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func genKey(t *testing.T, kid string) keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return keypair{kid: kid, pub: pub, priv: priv}
}

func sign(t *testing.T, kp keypair, claims jwtv5.MapClaims) string {
	t.Helper()
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	if kp.kid != "" {
		tok.Header["kid"] = kp.kid
	}
	raw, err := tok.SignedString(kp.priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestVerifyValidToken(t *testing.T) {
	kp := genKey(t, "k1")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"k1": kp.pub})

	raw := sign(t, kp, jwtv5.MapClaims{
		"iss": "iss-1",
		"sub": "user-7",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	claims, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if Subject(claims) != "user-7" {
		t.Fatalf("sub=%q", Subject(claims))
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	kp := genKey(t, "k1")
	other := genKey(t, "k1")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"k1": other.pub})

	raw := sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyExpiredWithTolerance(t *testing.T) {
	kp := genKey(t, "k1")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"k1": kp.pub})

	// vencido hace 10s: dentro de la tolerancia de 30s
	raw := sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(-10 * time.Second).Unix()})
	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("within tolerance should pass: %v", err)
	}

	// vencido hace 2m: afuera
	raw = sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(-2 * time.Minute).Unix()})
	if _, err := v.Verify(raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyNotBefore(t *testing.T) {
	kp := genKey(t, "k1")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"k1": kp.pub})

	raw := sign(t, kp, jwtv5.MapClaims{
		"iss": "iss-1",
		"nbf": time.Now().Add(5 * time.Minute).Unix(),
		"exp": time.Now().Add(10 * time.Minute).Unix(),
	})
	if _, err := v.Verify(raw); !errors.Is(err, ErrNotBefore) {
		t.Fatalf("expected ErrNotBefore, got %v", err)
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	kp := genKey(t, "k1")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"k1": kp.pub})

	raw := sign(t, kp, jwtv5.MapClaims{"iss": "evil", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", err)
	}
}

func TestVerifyUnknownKID(t *testing.T) {
	kp := genKey(t, "rotated-out")
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{
		"k1": genKey(t, "k1").pub,
		"k2": genKey(t, "k2").pub,
	})

	raw := sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for unknown kid, got %v", err)
	}
}

func TestVerifyNoKIDSingleKeyFallback(t *testing.T) {
	kp := genKey(t, "") // sin kid en el header
	v := NewVerifierFromKeys("iss-1", map[string]ed25519.PublicKey{"only": kp.pub})

	raw := sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("single-key fallback should verify: %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifierFromKeys("iss-1", nil)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := v.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestNewVerifierDecodesBase64Keys(t *testing.T) {
	kp := genKey(t, "k1")
	v, err := NewVerifier("iss-1", map[string]string{
		"k1": base64.StdEncoding.EncodeToString(kp.pub),
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	raw := sign(t, kp, jwtv5.MapClaims{"iss": "iss-1", "exp": time.Now().Add(time.Minute).Unix()})
	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := NewVerifier("iss-1", map[string]string{"bad": "%%%"}); err == nil {
		t.Fatal("invalid base64 must fail")
	}
}
