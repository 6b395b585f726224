package authflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token fails verification
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs session tokens into HS256 JWTs for API clients that
// cannot hold a session cookie.
type TokenIssuer struct {
	SecretKey string
	Issuer    string
	TTL       time.Duration

	// Coordinator turns users into session tokens
	Coordinator *Coordinator
}

func NewTokenIssuer(coordinator *Coordinator, cfg JWTConfig) *TokenIssuer {
	out := &TokenIssuer{
		SecretKey:   cfg.Secret,
		Issuer:      cfg.Issuer,
		TTL:         cfg.TTL,
		Coordinator: coordinator,
	}
	if out.TTL <= 0 {
		out.TTL = time.Hour
	}
	return out
}

// Issue returns a signed token whose subject is the user's session token
func (t *TokenIssuer) Issue(user *User) (string, error) {
	if t.SecretKey == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   t.Coordinator.SerializeSession(user),
		Issuer:    t.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
	})
	return token.SignedString([]byte(t.SecretKey))
}

// Verify checks signature, issuer and expiry and returns the session token
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	if t.SecretKey == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(t.SecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(t.Issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
