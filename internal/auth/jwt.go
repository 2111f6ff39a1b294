package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "chatarchive"

// Claims is the payload of an API token. Tokens are issued to registered
// apps, not to people: the archive has no end-user accounts.
type Claims struct {
	AppID   uuid.UUID `json:"app_id"`
	AppName string    `json:"app_name"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for an app, valid for ttl.
func GenerateToken(appID uuid.UUID, appName, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		AppID:   appID,
		AppName: appName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   appID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, expiry and issuer and returns the claims.
// Only HMAC signatures are accepted.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.AppID == uuid.Nil {
		return nil, fmt.Errorf("token has no app id")
	}
	return claims, nil
}
