// Package auth provides optional bearer-token protection for the dashboard
// API. It is active only when a JWT secret is configured; without one the
// API runs open, which is the expected posture for a local tool.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"autodialer-platform/internal/config"
)

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    cfg.AccessTokenTTL,
	}, nil
}

type Claims struct {
	jwt.RegisteredClaims

	Operator string `json:"operator"`
}

// IssueToken mints an access token for the named operator.
func (m *Manager) IssueToken(now time.Time, operator string) (string, error) {
	if operator == "" {
		return "", errors.New("auth: operator is required")
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Operator: operator,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secret)
}

// Verify validates a token. HS256 only; anything else is rejected.
func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	tok, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !tok.Valid {
		return Claims{}, errors.New("auth: invalid token")
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return Claims{}, errors.New("auth: issuer mismatch")
	}
	if claims.Operator == "" {
		return Claims{}, errors.New("auth: operator claim missing")
	}
	return claims, nil
}
