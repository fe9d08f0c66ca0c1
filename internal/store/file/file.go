// Package file persists bookings as a pretty-printed JSON array in a single
// file. Writes go to a temp file in the same directory and are renamed over
// the target, so a concurrent reader sees either the old or the new array.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"venuebook/internal/domain"
	"venuebook/internal/store"
)

const (
	DefaultPath = "bookings.json"
	FileMode    = os.FileMode(0o644)
)

type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
	now  func() time.Time
}

func New(path string, log *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path: path,
		log:  log.With(slog.String("component", "store.file"), slog.String("path", path)),
		now:  time.Now,
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	err := s.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		out, err = tx.Load(ctx)
		return err
	})
	return out, err
}

func (s *Store) Save(ctx context.Context, bookings []domain.Booking) error {
	return s.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		return tx.Save(ctx, bookings)
	})
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, fileTx{s: s})
}

type fileTx struct {
	s *Store
}

// Load returns an error marked store.ErrCorrupt when the file is not a JSON
// array. The offending file has already been moved aside at that point, so a
// following Save cannot destroy it. If it could not be moved, the error is
// left unmarked. A single record with fields of the wrong type is kept as
// read and logged; it never fails the whole file.
func (t fileTx) Load(ctx context.Context) ([]domain.Booking, error) {
	if err := t.s.ensureExists(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(t.s.path)
	if err != nil {
		return nil, errors.Wrap(err, "read bookings file")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Booking{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		quarantined := t.s.quarantine()
		if quarantined == "" {
			return nil, errors.Wrap(err, "decode bookings file")
		}
		return nil, errors.Mark(
			errors.Wrapf(err, "decode bookings file (moved to %q)", quarantined),
			store.ErrCorrupt,
		)
	}

	bookings := make([]domain.Booking, 0, len(records))
	for i, rec := range records {
		b, err := domain.DecodeStored(rec)
		if err != nil {
			t.s.log.Warn("stored booking has unreadable fields, keeping it as is",
				slog.Int("index", i),
				slog.String("booking_id", b.BookingID),
				slog.Any("err", err),
			)
		}
		bookings = append(bookings, b)
	}

	t.s.log.Debug("bookings loaded", slog.Int("count", len(bookings)))
	return bookings, nil
}

func (t fileTx) Save(ctx context.Context, bookings []domain.Booking) error {
	records := make([]json.RawMessage, 0, len(bookings))
	for _, b := range bookings {
		if b.Raw != nil {
			records = append(records, b.Raw)
			continue
		}
		rec, err := json.Marshal(b)
		if err != nil {
			return errors.Wrapf(err, "encode booking %q", b.BookingID)
		}
		records = append(records, rec)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode bookings")
	}
	if err := t.s.writeAtomic(data); err != nil {
		return err
	}
	t.s.log.Debug("bookings saved", slog.Int("count", len(bookings)))
	return nil
}

func (s *Store) ensureExists() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "stat bookings file")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create bookings directory")
	}
	if err := s.writeAtomic([]byte("[]")); err != nil {
		return err
	}
	s.log.Info("initialized empty bookings file")
	return nil
}

// writeAtomic keeps the mode of an existing file and creates a new one as
// FileMode.
func (s *Store) writeAtomic(data []byte) error {
	mode := FileMode
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
	}

	dir := filepath.Dir(s.path)
	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "create temp bookings file")
	}
	tmpPath := f.Name()

	if err := f.Chmod(mode); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "chmod bookings file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "write bookings file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "sync bookings file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close bookings file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "replace bookings file")
	}
	return nil
}

func (s *Store) quarantine() string {
	dst := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().UnixNano())
	if err := os.Rename(s.path, dst); err != nil {
		s.log.Error("failed to move corrupt bookings file aside", slog.Any("err", err))
		return ""
	}
	s.log.Warn("corrupt bookings file moved aside", slog.String("moved_to", dst))
	return dst
}
