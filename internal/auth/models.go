package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID     string `json:"user_id"`
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
	Type       string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
