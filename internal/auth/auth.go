package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// The management API has exactly one operator account, configured at boot.
// There is no user table: credentials live in SecurityConfig and tokens are
// short-lived HS256 JWTs. AuthMiddleware stores the operator name in the
// request context via internal.ContextWithOperator.

// ServiceAPI performs authentication business logic.
type ServiceAPI interface {
	Authenticate(dto LoginDTO) (TokenResponse, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// Claims represents the operator JWT claims.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
