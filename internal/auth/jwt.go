package auth

import (
	"fmt"
	"time"

	"convive/config"
	"convive/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID        uint   `json:"user_id"`
	InstitutionID uint   `json:"institution_id"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(cfg *config.JWTConfig, userID, institutionID uint, role string) (string, error) {
	claims := Claims{
		UserID:        userID,
		InstitutionID: institutionID,
		Role:          role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AccessSecret))
}

// ErrInvalidToken is an ErrUnauthenticated: the token did not resolve to a
// caller identity.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.AccessSecret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
