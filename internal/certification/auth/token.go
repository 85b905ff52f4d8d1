// Package auth issues and validates the JWTs that carry a caller's
// identity and role.
package auth

import (
	"fmt"
	"time"

	"github.com/gartstein/certify/internal/certification/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer     = "certify-auth"
	DefaultTTL = 24 * time.Hour
)

// Claims are the registered claims plus the caller's role and display name.
type Claims struct {
	Role models.Role `json:"role"`
	Name string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for actor valid for ttl.
func GenerateToken(actor models.Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		Name: actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Identity,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// validateToken checks the token signature and returns the actor it names.
func validateToken(tokenString, secret string) (models.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.Actor{}, fmt.Errorf("invalid token claims")
	}
	if !claims.Role.Valid() {
		return models.Actor{}, fmt.Errorf("invalid token role %q", claims.Role)
	}

	return models.Actor{Identity: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
