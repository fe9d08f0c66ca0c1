package memory

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"

	"venuebook/internal/domain"
)

func TestLoad_ReturnsCopies(t *testing.T) {
	s := New(domain.Booking{BookingID: "b1", Emails: []string{"a@example.com"}})

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	got[0].Emails[0] = "changed"
	got[0].BookingID = "changed"

	again, _ := s.Load(context.Background())
	if again[0].BookingID != "b1" || again[0].Emails[0] != "a@example.com" {
		t.Fatalf("store mutated through a loaded copy: %+v", again[0])
	}
}

func TestSave_ReturnsInjectedError(t *testing.T) {
	s := New()
	s.SaveErr = errors.New("disk full")

	if err := s.Save(context.Background(), []domain.Booking{{BookingID: "b1"}}); !errors.Is(err, s.SaveErr) {
		t.Fatalf("error = %v, want %v", err, s.SaveErr)
	}
	got, _ := s.Load(context.Background())
	if len(got) != 0 {
		t.Fatalf("failed save must not change the store, got %d bookings", len(got))
	}
}
