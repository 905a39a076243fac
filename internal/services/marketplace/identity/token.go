package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/Kingl1tz/shoppal/internal/platform/errors"
	"github.com/Kingl1tz/shoppal/internal/platform/id"
)

const minKeyBytes = 32

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	SigningKey string `env:"SHOPPAL_IDENTITY_SIGNING_KEY"`
	Issuer     string `env:"SHOPPAL_IDENTITY_ISSUER"   envDefault:"shoppal"`
	Audience   string `env:"SHOPPAL_IDENTITY_AUDIENCE" envDefault:"shoppal-marketplace"`
}

// TokenConfig defines how identity tokens are signed and verified.
type TokenConfig struct {
	Issuer   string
	Audience string
	Key      []byte
	Now      func() time.Time
}

// Claims captures validated token claims.
type Claims struct {
	TokenID   string
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
}

// LoadTokenConfigFromEnv reads identity token configuration.
func LoadTokenConfigFromEnv(now func() time.Time) (TokenConfig, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return TokenConfig{}, fmt.Errorf("parse identity env: %w", err)
	}
	signingKey := strings.TrimSpace(raw.SigningKey)
	if signingKey == "" {
		return TokenConfig{}, fmt.Errorf("SHOPPAL_IDENTITY_SIGNING_KEY is required")
	}
	key, err := hex.DecodeString(signingKey)
	if err != nil {
		return TokenConfig{}, fmt.Errorf("decode identity signing key: %w", err)
	}
	cfg := TokenConfig{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Key:      key,
		Now:      now,
	}
	if err := cfg.validate(); err != nil {
		return TokenConfig{}, err
	}
	return cfg, nil
}

func (c TokenConfig) validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("identity issuer is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("identity audience is required")
	}
	if len(c.Key) < minKeyBytes {
		return fmt.Errorf("identity signing key must be at least %d bytes", minKeyBytes)
	}
	return nil
}

func (c TokenConfig) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// Verifier validates bearer tokens and rejects revoked ones.
type Verifier struct {
	cfg         TokenConfig
	revocations Revocations
}

// NewVerifier builds a Verifier. revocations may be nil.
func NewVerifier(cfg TokenConfig, revocations Revocations) (*Verifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg, revocations: revocations}, nil
}

// Verify returns the identity carried by token.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := v.VerifyClaims(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity, nil
}

// VerifyClaims validates token and returns its claims.
func (v *Verifier) VerifyClaims(ctx context.Context, token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "identity token is required")
	}
	if v == nil {
		return Claims{}, errors.New("identity verifier is not configured")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != v.cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeTokenInvalid, "identity token issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !slices.Contains([]string(parsed.Audience), v.cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeTokenInvalid, "identity token audience mismatch", map[string]string{"Field": "audience"})
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "identity token subject is required")
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "identity token jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "identity token exp is required")
	}
	now := v.cfg.now()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "identity token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "identity token not active yet")
	}

	revoked, err := v.isRevoked(ctx, parsed.ID)
	if err != nil {
		return Claims{}, apperrors.Wrap(apperrors.CodeStoreFailure, "check token revocation", err)
	}
	if revoked {
		return Claims{}, apperrors.New(apperrors.CodeTokenRevoked, "identity token is revoked")
	}

	claims := Claims{
		TokenID: parsed.ID,
		Identity: Identity{
			ID:          parsed.Subject,
			Email:       parsed.Email,
			DisplayName: parsed.DisplayName,
		},
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func (v *Verifier) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	if v == nil || v.revocations == nil {
		return false, nil
	}
	return v.revocations.IsRevoked(ctx, tokenID)
}

// Revoke marks the token id unusable until it would have expired.
func (v *Verifier) Revoke(ctx context.Context, claims Claims) error {
	if v == nil || v.revocations == nil {
		return nil
	}
	return v.revocations.Revoke(ctx, claims.TokenID, claims.ExpiresAt)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeTokenInvalid, "identity token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperrors.Wrap(apperrors.CodeTokenInvalid, "identity token alg is invalid", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeTokenExpired, "identity token is expired", err)
	default:
		return apperrors.Wrap(apperrors.CodeTokenInvalid, "identity token is malformed", err)
	}
}

// Issuer mints identity tokens for development tooling and tests.
type Issuer struct {
	cfg   TokenConfig
	newID func() (string, error)
}

// NewIssuer builds an Issuer.
func NewIssuer(cfg TokenConfig) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Issuer{cfg: cfg, newID: id.NewID}, nil
}

// Issue signs a token for identity valid for ttl.
func (i *Issuer) Issue(identity Identity, ttl time.Duration) (string, error) {
	if i == nil {
		return "", errors.New("identity issuer is not configured")
	}
	if identity.IsZero() {
		return "", errors.New("identity id is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}
	tokenID, err := i.newID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	now := i.cfg.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        tokenID,
		},
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}
