// Package marketplace parses marketplace service flags and launches the service.
package marketplace

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/Kingl1tz/shoppal/internal/platform/cmd"
	"github.com/Kingl1tz/shoppal/internal/platform/logging"
	server "github.com/Kingl1tz/shoppal/internal/services/marketplace/app"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
)

// Config holds marketplace command configuration.
type Config struct {
	HTTPAddr string `env:"SHOPPAL_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"SHOPPAL_GRPC_ADDR" envDefault:":8081"`

	StoreDriver string `env:"SHOPPAL_STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SHOPPAL_SQLITE_PATH"  envDefault:"data/marketplace.db"`
	PostgresDSN string `env:"SHOPPAL_POSTGRES_DSN"`

	RedisAddr string        `env:"SHOPPAL_REDIS_ADDR"`
	CacheTTL  time.Duration `env:"SHOPPAL_CACHE_TTL" envDefault:"30s"`

	MongoURI      string `env:"SHOPPAL_MONGO_URI"`
	MongoDatabase string `env:"SHOPPAL_MONGO_DATABASE" envDefault:"shoppal"`
	BlobDir       string `env:"SHOPPAL_BLOB_DIR"       envDefault:"data/blobs"`
	PublicBaseURL string `env:"SHOPPAL_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	AMQPURL      string `env:"SHOPPAL_AMQP_URL"`
	AMQPExchange string `env:"SHOPPAL_AMQP_EXCHANGE" envDefault:"shoppal.marketplace"`

	AllowedOrigins []string `env:"SHOPPAL_ALLOWED_ORIGINS" envSeparator:","`
	TimeZone       string   `env:"SHOPPAL_TIME_ZONE" envDefault:"UTC"`

	Logging logging.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP API listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address")
	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store driver: sqlite or postgres")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres connection string")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the listing cache and token revocations")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB URI for GridFS image storage")
	fs.StringVar(&cfg.BlobDir, "blob-dir", cfg.BlobDir, "Directory for image storage when GridFS is not configured")
	fs.StringVar(&cfg.AMQPURL, "amqp-url", cfg.AMQPURL, "RabbitMQ URL for interest events")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level: debug, info, warn or error")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerConfig resolves the identity configuration and returns the runtime config.
func (c Config) ServerConfig() (server.Config, error) {
	token, err := identity.LoadTokenConfigFromEnv(nil)
	if err != nil {
		return server.Config{}, err
	}
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return server.Config{
		HTTPAddr:       c.HTTPAddr,
		GRPCAddr:       c.GRPCAddr,
		StoreDriver:    c.StoreDriver,
		SQLitePath:     c.SQLitePath,
		PostgresDSN:    c.PostgresDSN,
		RedisAddr:      c.RedisAddr,
		CacheTTL:       c.CacheTTL,
		MongoURI:       c.MongoURI,
		MongoDatabase:  c.MongoDatabase,
		BlobDir:        c.BlobDir,
		PublicBaseURL:  c.PublicBaseURL,
		AMQPURL:        c.AMQPURL,
		AMQPExchange:   c.AMQPExchange,
		AllowedOrigins: origins,
		TimeZone:       c.TimeZone,
		Token:          token,
	}, nil
}

// Run starts the marketplace HTTP API and health services.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Close()

	serverCfg, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMarketplace, entrypoint.RunOptions{Logger: logger.Logger}, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg, logger.Logger)
	})
}
