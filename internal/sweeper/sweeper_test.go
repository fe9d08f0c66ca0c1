package sweeper

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

type fakeExpirer struct {
	removeFn func(ctx context.Context) error
}

func (f *fakeExpirer) RemoveExpiredBookings(ctx context.Context) error {
	if f.removeFn == nil {
		panic("RemoveExpiredBookings not configured")
	}
	return f.removeFn(ctx)
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	_, err := New("every now and then", &fakeExpirer{}, slog.Default(), 0)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunOnce_WrapsFailureAndAppliesTimeout(t *testing.T) {
	boom := errors.New("disk full")
	var hadDeadline bool
	s, err := New("@hourly", &fakeExpirer{
		removeFn: func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return boom
		},
	}, slog.Default(), time.Second)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	err = s.RunOnce(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if !hadDeadline {
		t.Fatalf("expected a deadline on the sweep context")
	}
}

func TestStart_RunsOnSchedule(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New("@every 1s", &fakeExpirer{
		removeFn: func(ctx context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}, slog.Default(), 0)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep did not run")
	}
}
