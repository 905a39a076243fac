package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/platform/timeouts"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob/gridfs"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/domain"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/events"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/cache"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/postgres"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/storage/sqlite"
	"github.com/redis/go-redis/v9"
)

// Store drivers accepted by Config.StoreDriver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the backends and listeners of the marketplace runtime.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreDriver string
	SQLitePath  string
	PostgresDSN string

	// RedisAddr enables the listing read cache and shared token revocations.
	RedisAddr string
	CacheTTL  time.Duration

	// MongoURI selects GridFS image storage; BlobDir is used otherwise.
	MongoURI      string
	MongoDatabase string
	BlobDir       string
	PublicBaseURL string

	// AMQPURL enables interest.created publishing.
	AMQPURL      string
	AMQPExchange string

	AllowedOrigins []string
	// TimeZone anchors the "today" used when validating borrow dates.
	TimeZone string

	Token identity.TokenConfig
}

// Dependencies holds the opened backends and the services built over them.
type Dependencies struct {
	Store     storage.Store
	Blobs     blob.Store
	Publisher events.Publisher
	Verifier  *identity.Verifier

	Listings  *domain.ListingService
	Interests *domain.InterestService
	Dashboard *domain.DashboardService

	closers []func() error
}

// Open connects every configured backend. On failure it releases whatever
// was already opened.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (_ *Dependencies, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps := &Dependencies{}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()

	location, err := loadLocation(cfg.TimeZone)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	deps.closers = append(deps.closers, store.Close)

	var revocations identity.Revocations = identity.NewMemoryRevocations(cfg.Token.Now)
	var marketStore storage.Store = store
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		deps.closers = append(deps.closers, rdb.Close)
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.StoreConnect)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", addr, err)
		}
		marketStore = cache.New(store, cache.NewRedisBackend(rdb), cfg.CacheTTL, logger)
		revocations = identity.NewRedisRevocations(rdb, cfg.Token.Now)
		logger.InfoContext(ctx, "redis enabled", "addr", addr)
	}
	deps.Store = marketStore

	deps.Blobs, err = openBlobs(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	deps.Publisher = events.Noop{}
	if url := strings.TrimSpace(cfg.AMQPURL); url != "" {
		publisher, err := events.DialAMQP(url, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, publisher.Close)
		deps.Publisher = publisher
		logger.InfoContext(ctx, "amqp publisher enabled", "exchange", cfg.AMQPExchange)
	}

	deps.Verifier, err = identity.NewVerifier(cfg.Token, revocations)
	if err != nil {
		return nil, err
	}

	opts := domain.Options{Clock: cfg.Token.Now, Logger: logger, Location: location}
	deps.Listings = domain.NewListingService(deps.Store, deps.Blobs, opts)
	deps.Interests = domain.NewInterestService(deps.Store, deps.Store, deps.Publisher, opts)
	deps.Dashboard = domain.NewDashboardService(deps.Store, deps.Store, opts)
	return deps, nil
}

// Close releases backends in reverse opening order.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range slices.Backward(d.closers) {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return location, nil
}

func openStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = filepath.Join("data", "marketplace.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open marketplace sqlite store: %w", err)
		}
		return store, nil
	case DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, timeouts.StoreConnect)
		defer cancel()
		store, err := postgres.Open(connectCtx, cfg.PostgresDSN, postgres.Options{})
		if err != nil {
			return nil, fmt.Errorf("open marketplace postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openBlobs(ctx context.Context, cfg Config, deps *Dependencies) (blob.Store, error) {
	if uri := strings.TrimSpace(cfg.MongoURI); uri != "" {
		connectCtx, cancel := context.WithTimeout(ctx, timeouts.StoreConnect)
		defer cancel()
		client, err := gridfs.Connect(connectCtx, uri)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() error {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			return client.Disconnect(disconnectCtx)
		})
		database := strings.TrimSpace(cfg.MongoDatabase)
		if database == "" {
			database = "shoppal"
		}
		return gridfs.New(client.Database(database), gridfs.DefaultBucket, cfg.PublicBaseURL)
	}
	dir := strings.TrimSpace(cfg.BlobDir)
	if dir == "" {
		dir = filepath.Join("data", "blobs")
	}
	return blob.NewFSStore(dir, cfg.PublicBaseURL)
}
