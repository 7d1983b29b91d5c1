// Package token issues and verifies signed session credentials.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
)

const issuer = "autocontrol"

// Type discriminates the two credential variants. A refresh token presented
// where an access token is expected must always be rejected.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	ErrTokenMalformed    = errors.New("token_malformed")
	ErrTokenExpired      = errors.New("token_expired")
	ErrTokenTypeMismatch = errors.New("token_type_mismatch")
	ErrTokenIncomplete   = errors.New("token_incomplete")
)

// Subject identifies the user a credential is issued for.
type Subject struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	Role   string
	Email  string
}

// Claims is the verified payload of a session credential. The embedded role
// is informational only; the authoritative role is re-read from the store
// during tenant resolution.
type Claims struct {
	UserID    string `json:"uid"`
	OrgID     string `json:"org"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Service signs and verifies access and refresh tokens with distinct secrets.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// New builds the token service from configuration.
func New(cfg config.Config) *Service {
	return &Service{
		accessSecret:  []byte(cfg.Token.AccessSecret),
		refreshSecret: []byte(cfg.Token.RefreshSecret),
		accessTTL:     cfg.Token.AccessTTL,
		refreshTTL:    cfg.Token.RefreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IssueAccess signs a short-lived access token for the subject.
func (s *Service) IssueAccess(sub Subject) (string, error) {
	return s.issue(sub, TypeAccess, s.accessTTL, s.accessSecret)
}

// IssueRefresh signs a longer-lived refresh token for the subject.
func (s *Service) IssueRefresh(sub Subject) (string, error) {
	return s.issue(sub, TypeRefresh, s.refreshTTL, s.refreshSecret)
}

func (s *Service) issue(sub Subject, typ Type, ttl time.Duration, secret []byte) (string, error) {
	if sub.UserID == 0 || sub.OrgID == 0 {
		return "", ErrTokenIncomplete
	}
	if len(secret) == 0 {
		return "", errors.New("signing secret is not configured")
	}

	now := s.now()
	claims := Claims{
		UserID:    sub.UserID.String(),
		OrgID:     sub.OrgID.String(),
		Role:      strings.TrimSpace(sub.Role),
		Email:     strings.TrimSpace(sub.Email),
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks signature, expiry, type and claim completeness, and returns
// the embedded claims. Verification is purely cryptographic; no store access
// happens here.
func (s *Service) Verify(raw string, want Type) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	secret := s.accessSecret
	if want == TypeRefresh {
		secret = s.refreshSecret
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenMalformed
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != string(want) {
		return nil, ErrTokenTypeMismatch
	}
	if err := validateClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParsedUserID parses the user ID claim.
func (c *Claims) ParsedUserID() (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.UserID)
	if err != nil || id == 0 {
		return 0, ErrTokenIncomplete
	}
	return id, nil
}

// ParsedOrgID parses the organization ID claim.
func (c *Claims) ParsedOrgID() (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.OrgID)
	if err != nil || id == 0 {
		return 0, ErrTokenIncomplete
	}
	return id, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return ErrTokenMalformed
	}
	if strings.TrimSpace(claims.UserID) == "" ||
		strings.TrimSpace(claims.OrgID) == "" ||
		strings.TrimSpace(claims.Role) == "" {
		return ErrTokenIncomplete
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return ErrTokenIncomplete
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return ErrTokenMalformed
	}
	return nil
}
