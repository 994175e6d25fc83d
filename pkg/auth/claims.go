package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   int64
	Username string
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by storefront clients.
type AccessTokenClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Owner returns the cart/checkout owner key for the authenticated user.
func (c AccessTokenClaims) Owner() string {
	return UserOwner(c.UserID)
}
