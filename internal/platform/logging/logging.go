// Package logging builds the process slog logger.
//
// Console output goes through a tint handler (or the JSON handler for
// machine-read environments). When a Fluent forwarder is configured every
// record is also posted there.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/lmittmann/tint"
)

// Format selects the console encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Config controls logger construction.
type Config struct {
	Level      string `env:"SHOPPAL_LOG_LEVEL" envDefault:"info"`
	Format     string `env:"SHOPPAL_LOG_FORMAT" envDefault:"text"`
	AddSource  bool   `env:"SHOPPAL_LOG_ADD_SOURCE"`
	NoColor    bool   `env:"SHOPPAL_LOG_NO_COLOR"`
	FluentHost string `env:"SHOPPAL_LOG_FLUENT_HOST"`
	FluentPort int    `env:"SHOPPAL_LOG_FLUENT_PORT" envDefault:"24224"`
	FluentTag  string `env:"SHOPPAL_LOG_FLUENT_TAG" envDefault:"shoppal"`

	// Writer overrides os.Stderr for console output.
	Writer io.Writer
}

// Logger couples a slog logger with the resources it holds open.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Close flushes and releases forwarding sinks.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var console slog.Handler
	switch Format(strings.ToLower(strings.TrimSpace(cfg.Format))) {
	case FormatJSON:
		console = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	case FormatText, "":
		console = tint.NewHandler(writer, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: consoleTimeFormat,
			NoColor:    cfg.NoColor,
		})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := &Logger{}
	handler := console
	if host := strings.TrimSpace(cfg.FluentHost); host != "" {
		client, err := fluent.New(fluent.Config{
			FluentHost: host,
			FluentPort: cfg.FluentPort,
			TagPrefix:  cfg.FluentTag,
			Async:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("create fluent logger: %w", err)
		}
		logger.closers = append(logger.closers, client)
		handler = Fanout(console, NewFluentHandler(client, "log", level))
	}
	logger.Logger = slog.New(handler)
	return logger, nil
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
