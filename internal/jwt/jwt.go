package jwt

import (
	"fmt"
	"time"

	"chat-service-backend/internal/env"
	"chat-service-backend/internal/model"

	"github.com/golang-jwt/jwt"
)

// Tokens are minted by the external auth service; this package only
// verifies them. Each role has its own signing secret so a client token
// can never pass as a user token.

func roleSecret(role model.ParticipantType) (string, error) {
	switch role {
	case model.ParticipantTypeUser:
		if s := env.Get(env.UserSecretKey); s != "" {
			return s, nil
		}
	case model.ParticipantTypeClient:
		if s := env.Get(env.ClientSecretKey); s != "" {
			return s, nil
		}
	default:
		return "", fmt.Errorf("jwt: unknown role %q", role)
	}
	return "", fmt.Errorf("jwt: no secret configured for role %q", role)
}

// ParseToken verifies the token against the secret for the given role and
// returns its claims.
func ParseToken(tokenString string, role model.ParticipantType) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	secret, err := roleSecret(role)
	if err != nil {
		return nil, err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// CreateToken signs a claim set for the given role. Used by local tooling
// and tests; production tokens come from the auth service.
func CreateToken(claims jwt.MapClaims, role model.ParticipantType, validUntil int64) (string, error) {
	secret, err := roleSecret(role)
	if err != nil {
		return "", err
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(15 * time.Minute).Unix()
	}
	claims["exp"] = validUntil

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
