package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier validates a raw bearer credential and returns its claims.
// This abstraction enables testing with mock implementations.
type TokenVerifier interface {
	// Verify checks signature, expiry and subject format.
	// All failures wrap ErrInvalidToken.
	Verify(ctx context.Context, token string) (*Claims, error)
	// Close releases any resources held by the verifier.
	Close()
}

// VerifierConfig configures token verification.
type VerifierConfig struct {
	// Secret verifies locally issued HS256 tokens.
	Secret string
	// JWKSURL, when set, additionally accepts RS256 tokens signed by keys
	// published at this URL.
	JWKSURL string
}

// Verifier validates HS256 tokens with a shared secret and, optionally,
// RS256 tokens against a JWKS endpoint.
type Verifier struct {
	secret []byte
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
	parser *jwt.Parser
}

// NewVerifier creates a Verifier. When JWKSURL is set the key set is fetched
// immediately and refreshed in the background until Close.
func NewVerifier(ctx context.Context, cfg *VerifierConfig) (*Verifier, error) {
	v := &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{
				jwt.SigningMethodHS256.Alg(),
				jwt.SigningMethodRS256.Alg(),
			}),
			jwt.WithExpirationRequired(),
		),
	}

	if cfg.JWKSURL != "" {
		jwksCtx, cancel := context.WithCancel(ctx)
		jwks, err := keyfunc.NewDefaultCtx(jwksCtx, []string{cfg.JWKSURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", cfg.JWKSURL, err)
		}
		v.jwks = jwks
		v.cancel = cancel
	}

	return v, nil
}

// Verify validates the token and returns its claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return v.secret, nil
		case *jwt.SigningMethodRSA:
			if v.jwks == nil {
				return nil, errors.New("RS256 tokens are not accepted without a JWKS URL")
			}
			return v.jwks.KeyfuncCtx(ctx)(token)
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return claims, nil
}

// Close stops the background JWKS refresh, if any.
func (v *Verifier) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

// Ensure Verifier implements TokenVerifier at compile time.
var _ TokenVerifier = (*Verifier)(nil)
