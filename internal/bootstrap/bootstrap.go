// Package bootstrap turns a loaded Config into the running pieces shared by
// the server and the admin CLI.
package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"venuebook/internal/config"
	"venuebook/internal/service/bookings"
	"venuebook/internal/store"
	"venuebook/internal/store/file"
	"venuebook/internal/store/memory"
	"venuebook/internal/store/postgres"
)

func NewLogger(w io.Writer, level, service string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)})).With(
		slog.String("service", service),
	)
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore returns the configured backend and a func releasing it.
func OpenStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.BookingStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.StoreFile, "":
		log.Info("using file store", slog.String("path", cfg.StoreFilePath))
		return file.New(cfg.StoreFilePath, log), noop, nil
	case config.StoreMemory:
		log.Warn("using in-memory store; bookings are lost on exit")
		return memory.New(), noop, nil
	case config.StorePostgres:
		log.Info("connecting to database", DatabaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewBookingRepo(db), func() error { return postgres.Close(db) }, nil
	default:
		return nil, nil, errors.Newf("unknown store driver %q", cfg.StoreDriver)
	}
}

// ServiceOptions carries the config-derived options every caller of the
// booking engine needs.
func ServiceOptions(cfg config.Config, log *slog.Logger) []bookings.Option {
	return []bookings.Option{
		bookings.WithLocation(cfg.Location),
		bookings.WithLogger(log),
	}
}

func DatabaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
