package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec(t)

	in := map[string]any{"sub": "alice", "sid": "01HZZZZZZZZZZZZZZZZZZZZZZZ"}
	raw, err := c.Encode(in, 15*time.Minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := in["exp"]; ok {
		t.Fatalf("Encode mutated input claims")
	}

	claims, ok := c.Decode(raw)
	if !ok {
		t.Fatalf("expected decode ok")
	}
	if claims.Subject() != "alice" || claims.SessionID() != in["sid"] {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if len(claims) != 3 {
		t.Fatalf("claims=%v want exactly sub, sid and exp", claims)
	}
	for _, k := range []string{"sub", "sid", "exp"} {
		if _, ok := claims[k]; !ok {
			t.Fatalf("missing %s claim", k)
		}
	}
	exp := claims.ExpiresAt()
	if d := time.Until(exp); d <= 14*time.Minute || d > 15*time.Minute+time.Second {
		t.Fatalf("unexpected exp distance: %v", d)
	}
}

func TestCodec_Expired(t *testing.T) {
	c := testCodec(t)
	past := time.Now().Add(-time.Hour)

	raw, err := c.WithClock(func() time.Time { return past }).Encode(map[string]any{"sub": "alice"}, time.Minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, ok := c.Decode(raw); ok {
		t.Fatalf("expected expired token to fail")
	}
}

func TestCodec_TamperedAndGarbage(t *testing.T) {
	c := testCodec(t)

	raw, err := c.Encode(map[string]any{"sub": "alice"}, time.Minute)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments")
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	other, _ := NewCodec([]byte("another-secret-another-secret-xx"))
	foreign, _ := other.Encode(map[string]any{"sub": "alice"}, time.Minute)

	cases := map[string]string{
		"tampered":  tampered,
		"foreign":   foreign,
		"garbage":   "not.a.token",
		"empty":     "",
		"two parts": parts[0] + "." + parts[1],
	}
	for name, tok := range cases {
		if claims, ok := c.Decode(tok); ok || claims != nil {
			t.Fatalf("%s: expected (nil,false), got (%v,%v)", name, claims, ok)
		}
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	c := testCodec(t)
	exp := time.Now().Add(time.Minute).Unix()

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice", "exp": exp}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, ok := c.Decode(none); ok {
		t.Fatalf("expected alg=none to be rejected")
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "alice", "exp": exp}).
		SignedString(c.secret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, ok := c.Decode(hs512); ok {
		t.Fatalf("expected HS512 to be rejected")
	}
}

func TestCodec_RequiresExp(t *testing.T) {
	c := testCodec(t)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).SignedString(c.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok := c.Decode(raw); ok {
		t.Fatalf("expected token without exp to be rejected")
	}
}

func TestCodec_InvalidInputs(t *testing.T) {
	if _, err := NewCodec(nil); err != ErrSecretMissing {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
	c := testCodec(t)
	if _, err := c.Encode(map[string]any{"sub": "x"}, 0); err != ErrInvalidTTL {
		t.Fatalf("expected ErrInvalidTTL, got %v", err)
	}
}
