package services

import (
	"errors"
	"fmt"
	"time"

	"survey-voice-api/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// TokenManager issues and validates HS256 access and refresh tokens
type TokenManager struct {
	secret                 []byte
	accessTokenExpireMin   int
	refreshTokenExpireDays int
}

type Claims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	Kind   string `json:"kind"`
}

func NewTokenManager(secret string, accessExpMin, refreshExpDays int) *TokenManager {
	if accessExpMin <= 0 {
		accessExpMin = 30
	}
	if refreshExpDays <= 0 {
		refreshExpDays = 7
	}
	return &TokenManager{
		secret:                 []byte(secret),
		accessTokenExpireMin:   accessExpMin,
		refreshTokenExpireDays: refreshExpDays,
	}
}

// AccessTTL is how long an access token stays valid
func (m *TokenManager) AccessTTL() time.Duration {
	return time.Duration(m.accessTokenExpireMin) * time.Minute
}

func (m *TokenManager) GenerateAccessToken(u *models.User) (string, error) {
	return m.sign(u, tokenKindAccess, m.AccessTTL())
}

func (m *TokenManager) GenerateRefreshToken(u *models.User) (string, error) {
	return m.sign(u, tokenKindRefresh, time.Duration(m.refreshTokenExpireDays)*24*time.Hour)
}

func (m *TokenManager) sign(u *models.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   u.Email,
		},
		UserID: u.ID,
		Email:  u.Email,
		Kind:   kind,
	}
	if kind == tokenKindAccess {
		claims.Role = string(u.Role)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateAccessToken parses an access token. Refresh tokens are rejected.
func (m *TokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	return m.validate(tokenString, tokenKindAccess)
}

func (m *TokenManager) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return m.validate(tokenString, tokenKindRefresh)
}

func (m *TokenManager) validate(tokenString, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", models.ErrUnauthorized, kind)
	}
	return claims, nil
}
