package servicetoken

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"
	"time"
)

func newKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestSignAndVerify(t *testing.T) {
	key := newKeyPair(t)
	signer, err := NewSigner("uploader-cli", "active", key, time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier("importer", []string{"uploader-cli"}, &key.PublicKey, 0)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := signer.Sign("importer")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	issuer, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if issuer != "uploader-cli" {
		t.Fatalf("issuer = %q, want uploader-cli", issuer)
	}
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	key := newKeyPair(t)
	signer, _ := NewSigner("uploader-cli", "active", key, time.Minute)
	verifier, _ := NewVerifier("importer", []string{"uploader-cli"}, &key.PublicKey, 0)

	token, err := signer.Sign("some-other-service")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected verification failure for wrong audience")
	}
}

func TestVerifyRejectsUnknownIssuer(t *testing.T) {
	key := newKeyPair(t)
	signer, _ := NewSigner("stranger", "active", key, time.Minute)
	verifier, _ := NewVerifier("importer", []string{"uploader-cli"}, &key.PublicKey, 0)

	token, err := signer.Sign("importer")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected verification failure for unknown issuer")
	}
}

func TestBearerToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Fatal("expected no token on empty header")
	}
	r.Header.Set("Authorization", "Bearer abc123")
	token, ok := BearerToken(r)
	if !ok || token != "abc123" {
		t.Fatalf("BearerToken = %q, %v", token, ok)
	}
	r.Header.Set("Authorization", "Basic abc123")
	if _, ok := BearerToken(r); ok {
		t.Fatal("expected no token for Basic auth")
	}
}
