package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims extends the registered JWT claims with the signed-in email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"sub_email"`
}

// TokenManager signs and validates session tokens.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a TokenManager over the shared signing secret.
func NewTokenManager(secret string) (*TokenManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth.secret is required")
	}
	return &TokenManager{secret: []byte(secret)}, nil
}

// IssueToken creates a signed HS256 session token for the email.
func (m *TokenManager) IssueToken(email string, validity time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "freelance-crawler",
		},
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseClaims parses and verifies a session token.
func (m *TokenManager) ParseClaims(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ValidateToken parses a session token and returns the signed-in email.
func (m *TokenManager) ValidateToken(tokenString string) (string, error) {
	claims, err := m.ParseClaims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
