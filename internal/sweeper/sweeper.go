// Package sweeper removes expired bookings on a cron schedule so the store
// shrinks even when no request arrives to trigger the inline sweep.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

type expirer interface {
	RemoveExpiredBookings(ctx context.Context) error
}

type Sweeper struct {
	svc     expirer
	log     *slog.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// New accepts standard five-field cron specs and descriptors such as
// "@every 1m" or "@hourly". Each run is bounded by timeout when positive.
func New(schedule string, svc expirer, log *slog.Logger, timeout time.Duration) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "sweeper"))

	s := &Sweeper{svc: svc, log: log, timeout: timeout}
	cl := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, errors.Wrapf(err, "parse sweep schedule %q", schedule)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("sweeper started")
}

// Stop prevents further runs and waits for an in-flight run to finish or
// ctx to end, whichever comes first.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("sweeper stopped")
	case <-ctx.Done():
		s.log.Warn("sweeper stop timed out; abandoning in-flight run")
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.svc.RemoveExpiredBookings(ctx); err != nil {
		return errors.Wrap(err, "remove expired bookings")
	}
	s.log.Debug("sweep complete", slog.Duration("took", time.Since(start)))
	return nil
}

func (s *Sweeper) run() {
	if err := s.RunOnce(context.Background()); err != nil {
		s.log.Error("sweep failed", slog.Any("err", err))
	}
}

// cronLogger routes the scheduler's own messages into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{slog.Any("err", err)}, keysAndValues...)...)
}
