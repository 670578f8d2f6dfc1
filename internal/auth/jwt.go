package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Use tells access tokens apart from refresh tokens signed with the same
// secret.
type Use string

const (
	UseAccess  Use = "access"
	UseRefresh Use = "refresh"
)

// DefaultScope is granted to every token minted by the fake service.
const DefaultScope = "spark:all"

var ErrWrongUse = errors.New("token used for the wrong purpose")

// Claims identify the person a token was minted for. The person id travels
// in the registered subject claim.
type Claims struct {
	Use   Use    `json:"use"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) PersonID() string { return c.Subject }

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	// RefreshExpiry defaults to twelve times Expiry.
	RefreshExpiry time.Duration
	Issuer        string
	Scope         string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:        secret,
		Expiry:        14 * 24 * time.Hour,
		RefreshExpiry: 90 * 24 * time.Hour,
		Issuer:        "sparkfake",
		Scope:         DefaultScope,
	}
}

func (cfg TokenConfig) refreshExpiry() time.Duration {
	if cfg.RefreshExpiry > 0 {
		return cfg.RefreshExpiry
	}
	return cfg.Expiry * 12
}

// ExpiresIn reports the lifetime of tokens minted for use.
func (cfg TokenConfig) ExpiresIn(use Use) time.Duration {
	if use == UseRefresh {
		return cfg.refreshExpiry()
	}
	return cfg.Expiry
}

// CreateToken mints an access token for personID.
func CreateToken(personID string, cfg TokenConfig) (string, error) {
	return mint(personID, UseAccess, cfg)
}

func CreateRefreshToken(personID string, cfg TokenConfig) (string, error) {
	return mint(personID, UseRefresh, cfg)
}

func mint(personID string, use Use, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if personID == "" {
		return "", errors.New("missing person id")
	}
	lifetime := cfg.ExpiresIn(use)
	if lifetime <= 0 {
		return "", errors.New("invalid expiry")
	}

	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Use:   use,
		Scope: cfg.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   personID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        hex.EncodeToString(jti),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// VerifyToken accepts only access tokens.
func VerifyToken(token string, cfg TokenConfig) (*Claims, error) {
	return verify(token, UseAccess, cfg)
}

func VerifyRefreshToken(token string, cfg TokenConfig) (*Claims, error) {
	return verify(token, UseRefresh, cfg)
}

func verify(token string, use Use, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Use != use {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongUse, claims.Use, use)
	}
	return claims, nil
}
