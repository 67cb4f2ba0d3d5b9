package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robotsunny/private-app-store/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and verifies signed, time-limited identity tokens.
// The signing key is injected at construction; there is no ambient default.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

func (s *TokenService) Sign(u models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(u.ID), 10),
		"email": u.Email,
		"role":  u.Role,
		"exp":   now.Add(s.ttl).Unix(),
		"iat":   now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the bound identity. Any
// verification failure, expiry included, collapses to ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mapc["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	email, _ := mapc["email"].(string)
	role, _ := mapc["role"].(string)
	return Claims{UserID: uint(id), Email: email, Role: role}, nil
}
