// Package verifier implements the notification verifier HTTP endpoint:
// decrypt, validate envelope<->body consistency, measure latency, and
// persist per-identity records under an optional JWT.
package verifier

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates the bearer JWT the notifier forwards as the
// ?token= query parameter and extracts the subject (group id).
type TokenVerifier struct {
	PublicKey *rsa.PublicKey
}

// NewTokenVerifier builds a TokenVerifier from an already-parsed RSA public
// key (e.g. via jwt.ParseRSAPublicKeyFromPEM on startup).
func NewTokenVerifier(pub *rsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{PublicKey: pub}
}

// GroupID parses and verifies token, returning its "sub" claim (the group id).
func (v *TokenVerifier) GroupID(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("verifier: unexpected signing method %v", t.Header["alg"])
		}
		return v.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return "", fmt.Errorf("verifier: parsing token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("verifier: token is not valid")
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("verifier: reading sub claim: %w", err)
	}
	if sub == "" {
		return "", fmt.Errorf("verifier: sub claim is empty")
	}
	return sub, nil
}
