// Package testhelpers provides utilities for testing peroxia-engine components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret is a 32-byte HMAC secret for tests.
const TestJWTSecret = "test-secret-test-secret-test-sec"

// GenerateTestJWT creates an HS256 token signed with secret for the given subject.
// A zero expiresAt yields a token valid for one hour.
func GenerateTestJWT(secret, sub, username string, expiresAt time.Time) string {
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	claims := jwt.MapClaims{
		"sub":      sub,
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(fmt.Sprintf("failed to sign test token: %v", err))
	}
	return signed
}

// GenerateUnsignedJWT creates a structurally valid token with alg "none".
// Verifiers must reject it.
func GenerateUnsignedJWT(sub string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"sub":"%s","exp":%d}`, sub, time.Now().Add(time.Hour).Unix())))
	return fmt.Sprintf("%s.%s.", header, payload)
}
