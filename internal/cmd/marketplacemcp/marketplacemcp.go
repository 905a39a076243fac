// Package marketplacemcp parses MCP command flags and serves the marketplace
// tools over stdio.
package marketplacemcp

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Kingl1tz/shoppal/internal/cmd/marketplace"
	entrypoint "github.com/Kingl1tz/shoppal/internal/platform/cmd"
	"github.com/Kingl1tz/shoppal/internal/platform/logging"
	server "github.com/Kingl1tz/shoppal/internal/services/marketplace/app"
)

// Config holds MCP command configuration. Backends are configured the same
// way as the marketplace service.
type Config struct {
	marketplace.Config

	// Token is the bearer token the tools act as; empty starts signed out.
	Token string `env:"SHOPPAL_MCP_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Identity token the MCP tools act as")
	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store driver: sqlite or postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres connection string")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level: debug, info, warn or error")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the MCP tools over stdio. Logs go to stderr so stdout stays
// reserved for the protocol.
func Run(ctx context.Context, cfg Config) error {
	logCfg := cfg.Logging
	logCfg.Writer = os.Stderr
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Close()

	serverCfg, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMarketplaceMCP, entrypoint.RunOptions{Logger: logger.Logger}, func(ctx context.Context) error {
		return server.RunMCP(ctx, serverCfg, cfg.Token, logger.Logger)
	})
}
