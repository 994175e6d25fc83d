package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
)

// clockSkew tolerates small drift between the storefront backend that signs
// tokens and this service.
const clockSkew = 30 * time.Second

var (
	ErrNoSecret = errors.New("jwt secret is required")
	signing     = jwt.SigningMethodHS256
)

// Verifier checks HS256 access tokens issued by the storefront backend.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier pins the algorithm and, when one is configured, the issuer.
func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signing.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify returns the claims of a valid token that names a user.
func (v *Verifier) Verify(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if _, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

// ParseAccessToken is a one-shot Verify for callers without a Verifier.
func ParseAccessToken(cfg config.JWTConfig, token string) (*AccessTokenClaims, error) {
	v, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	return v.Verify(token)
}

// MintAccessToken signs a token the way the storefront backend does. The
// service never issues tokens itself; tests and local tooling use this.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case payload.UserID <= 0:
		return "", fmt.Errorf("invalid user id %d", payload.UserID)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID:   payload.UserID,
		Username: payload.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signing, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
