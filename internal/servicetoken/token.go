// Package servicetoken issues and validates short-lived RS256 JWTs used to
// authenticate internal callers of the importer API.
package servicetoken

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL is the default lifetime for service tokens.
	DefaultTokenTTL = 60 * time.Second
	// DefaultLeeway is the clock-skew tolerance applied during validation.
	DefaultLeeway = 15 * time.Second
)

// Signer issues internal service JWTs.
type Signer struct {
	issuer string
	ttl    time.Duration
	key    *rsa.PrivateKey
	kid    string
}

// NewSigner creates a signer from an in-memory private key.
func NewSigner(issuer, keyID string, key *rsa.PrivateKey, ttl time.Duration) (*Signer, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("service token issuer is required")
	}
	if key == nil {
		return nil, errors.New("service token private key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{issuer: issuer, ttl: ttl, key: key, kid: keyID}, nil
}

// NewSignerFromFile creates a signer from a PEM-encoded private key file.
func NewSignerFromFile(issuer, keyID, path string, ttl time.Duration) (*Signer, error) {
	key, err := loadPrivateKey(path)
	if err != nil {
		return nil, err
	}
	return NewSigner(issuer, keyID, key, ttl)
}

// Sign issues a token for the given audience.
func (s *Signer) Sign(audience string) (string, error) {
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return "", errors.New("audience is required")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}
	return token.SignedString(s.key)
}

// Verifier validates internal service JWTs against an audience and an
// issuer allowlist.
type Verifier struct {
	audience string
	issuers  map[string]struct{}
	leeway   time.Duration
	keys     map[string]*rsa.PublicKey
	fallback *rsa.PublicKey
}

// NewVerifier creates a verifier from an in-memory public key.
func NewVerifier(audience string, allowedIssuers []string, key *rsa.PublicKey, leeway time.Duration) (*Verifier, error) {
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return nil, errors.New("service token audience is required")
	}
	if key == nil {
		return nil, errors.New("service token public key is required")
	}
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	issuers := make(map[string]struct{}, len(allowedIssuers))
	for _, iss := range allowedIssuers {
		iss = strings.TrimSpace(iss)
		if iss != "" {
			issuers[iss] = struct{}{}
		}
	}
	if len(issuers) == 0 {
		return nil, errors.New("at least one allowed issuer is required")
	}
	return &Verifier{
		audience: audience,
		issuers:  issuers,
		leeway:   leeway,
		keys:     map[string]*rsa.PublicKey{},
		fallback: key,
	}, nil
}

// NewVerifierFromFile creates a verifier from a PEM-encoded public key file.
func NewVerifierFromFile(audience string, allowedIssuers []string, path string, leeway time.Duration) (*Verifier, error) {
	key, err := loadPublicKey(path)
	if err != nil {
		return nil, err
	}
	return NewVerifier(audience, allowedIssuers, key, leeway)
}

// AddKey registers an additional public key under a key id. Tokens whose
// kid header names a registered key verify against it; everything else
// falls back to the construction-time key.
func (v *Verifier) AddKey(keyID string, key *rsa.PublicKey) error {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return errors.New("key id is required")
	}
	if key == nil {
		return errors.New("public key is required")
	}
	v.keys[keyID] = key
	return nil
}

// AddKeyFromFile registers a PEM-encoded public key file under a key id.
func (v *Verifier) AddKeyFromFile(keyID, path string) error {
	key, err := loadPublicKey(path)
	if err != nil {
		return err
	}
	return v.AddKey(keyID, key)
}

// Verify parses and validates a token, returning its issuer.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		if kid, _ := t.Header["kid"].(string); kid != "" {
			if key, ok := v.keys[kid]; ok {
				return key, nil
			}
		}
		return v.fallback, nil
	},
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if _, ok := v.issuers[claims.Issuer]; !ok {
		return "", fmt.Errorf("issuer %q not allowed", claims.Issuer)
	}
	return claims.Issuer, nil
}

// BearerToken extracts a bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key %s is not RSA", path)
	}
	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := readPEM(path)
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key %s is not RSA", path)
	}
	return key, nil
}

func readPEM(path string) (*pem.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	return block, nil
}
