// Package identitytoken mints development bearer tokens for the marketplace.
package identitytoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
)

// Config holds configuration for token minting.
type Config struct {
	UserID      string
	Email       string
	DisplayName string
	TTL         time.Duration
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{TTL: 24 * time.Hour}
	fs.StringVar(&cfg.UserID, "user", "", "user id the token identifies (required)")
	fs.StringVar(&cfg.Email, "email", "", "user email (default: <user>@example.com)")
	fs.StringVar(&cfg.DisplayName, "name", "", "user display name")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run signs a token with tokenCfg and writes it to out.
func Run(cfg Config, tokenCfg identity.TokenConfig, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		return errors.New("user id is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		email = userID + "@example.com"
	}
	issuer, err := identity.NewIssuer(tokenCfg)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(identity.Identity{ID: userID, Email: email, DisplayName: strings.TrimSpace(cfg.DisplayName)}, cfg.TTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
