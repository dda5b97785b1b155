package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatherly/event-chat/internal/core/domain"
)

// Claims defines the identity data we store in the JWT. The role claim is
// what the server trusts for announcement authorization; the client-side flag
// is never authoritative.
type Claims struct {
	Participant domain.Participant `json:"participant"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// GenerateToken creates a new JWT access token for a participant.
func (tm *TokenManager) GenerateToken(participant domain.Participant) (string, error) {
	if participant.IsZero() {
		return "", errors.New("participant identity is required")
	}
	if !participant.Role.IsValid() {
		return "", errors.New("participant role is invalid")
	}

	claims := &Claims{
		Participant: participant,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   participant.ID.String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Participant.IsZero() {
		return nil, errors.New("token carries no participant identity")
	}

	return claims, nil
}
