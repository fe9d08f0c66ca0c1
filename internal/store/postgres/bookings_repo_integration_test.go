package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"venuebook/internal/domain"
)

func TestPostgresIntegration_BookingsSaveLoadPreservesOrder(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("VENUEBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("VENUEBOOK_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "venuebook_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		b := bookingTx{tx: tx}

		loaded, err := b.Load(ctx)
		if err != nil {
			return err
		}
		if len(loaded) != 0 {
			return fmt.Errorf("len(loaded) = %d, want 0", len(loaded))
		}

		in := []domain.Booking{
			{BookingID: "b-2", VenueID: "v2", EventName: "later", Emails: []string{"x@example.com"}},
			{BookingID: "b-1", VenueID: "v1", EventName: "earlier"},
		}
		if err := b.Save(ctx, in); err != nil {
			return err
		}

		loaded, err = b.Load(ctx)
		if err != nil {
			return err
		}
		if len(loaded) != 2 {
			return fmt.Errorf("len(loaded) = %d, want 2", len(loaded))
		}
		if loaded[0].BookingID != "b-2" || loaded[1].BookingID != "b-1" {
			return fmt.Errorf("order = %s,%s, want b-2,b-1", loaded[0].BookingID, loaded[1].BookingID)
		}
		if len(loaded[0].Emails) != 1 || loaded[0].Emails[0] != "x@example.com" {
			return fmt.Errorf("emails = %v", loaded[0].Emails)
		}

		if err := b.Save(ctx, in[1:]); err != nil {
			return err
		}
		loaded, err = b.Load(ctx)
		if err != nil {
			return err
		}
		if len(loaded) != 1 || loaded[0].BookingID != "b-1" {
			return fmt.Errorf("after replace = %+v, want only b-1", loaded)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("tx error: %v", err)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
