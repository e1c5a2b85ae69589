package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only value AccessClaims.TokenType may carry. Refresh
// tokens are opaque random strings, never JWTs, so there is no "refresh"
// token_type to validate against here.
const TokenTypeAccess = "access"

// AccessClaims holds the JWT claims for an access token: {sub, email,
// workspace_id, role, token_type, iat, exp}. WorkspaceID and Role are
// advisory only. The edge re-reads live membership from storage on every
// protected call rather than trusting these fields, so a revoked or demoted
// membership takes effect before the token expires.
type AccessClaims struct {
	Email       string `json:"email"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewAccessToken creates a signed HS256 JWT access token carrying the
// caller's identity and a snapshot of one workspace membership.
func NewAccessToken(userID uuid.UUID, email string, workspaceID uuid.UUID, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret must not be empty")
	}

	now := time.Now()
	claims := AccessClaims{
		Email:       email,
		WorkspaceID: workspaceID.String(),
		Role:        role,
		TokenType:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a JWT access token string,
// enforcing the HMAC signing method and the token_type=="access" claim.
func ValidateAccessToken(tokenStr, secret string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("unexpected token_type: %q", claims.TokenType)
	}

	return claims, nil
}
