// Package server wires the marketplace runtime: the HTTP API, the gRPC
// health listener and the backends behind them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	platformgrpc "github.com/Kingl1tz/shoppal/internal/platform/grpc"
	"github.com/Kingl1tz/shoppal/internal/platform/timeouts"
	httpapi "github.com/Kingl1tz/shoppal/internal/services/marketplace/api/http"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// HealthService is the gRPC health service name reported as SERVING.
const HealthService = "shoppal.marketplace"

// Server hosts the marketplace HTTP API and gRPC health endpoint.
type Server struct {
	logger       *slog.Logger
	deps         *Dependencies
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
}

// New opens the backends and binds both listeners.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (_ *Server, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.deps, err = Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handler, err := httpapi.New(httpapi.Config{
		Listings:       s.deps.Listings,
		Interests:      s.deps.Interests,
		Dashboard:      s.deps.Dashboard,
		Blobs:          s.deps.Blobs,
		Verifier:       s.deps.Verifier,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: timeouts.Request,
	})
	if err != nil {
		return nil, err
	}

	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	s.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	s.httpServer = &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: timeouts.ReadHeader,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	s.grpcServer, s.health = platformgrpc.NewHealthServer(HealthService)
	return s, nil
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a marketplace server until context cancellation.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	server, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both listeners until ctx is cancelled or one of them fails,
// then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.InfoContext(ctx, "marketplace listening", "http_addr", s.HTTPAddr(), "grpc_addr", s.GRPCAddr())
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close releases listeners and backends.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.deps != nil {
		if err := s.deps.Close(); err != nil {
			s.logger.Error("close marketplace backends", "error", err)
		}
		s.deps = nil
	}
}
