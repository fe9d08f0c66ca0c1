package postgres

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"venuebook/internal/domain"
)

func TestRowConversionKeepsEveryField(t *testing.T) {
	capacity := 40
	coverage := 0.5
	score := 3.25
	in := domain.Booking{
		BookingID:           "1767225600000-v1",
		VenueID:             "v1",
		VenueName:           "Main Hall",
		VenueGroup:          "North Campus",
		EventName:           "Kickoff",
		EventDescription:    "Quarterly kickoff",
		DateFrom:            "2026-01-01",
		DateTo:              "2026-01-01",
		TimeFrom:            "09:00",
		TimeTo:              "10:00",
		Capacity:            &capacity,
		Coverage:            &coverage,
		Score:               &score,
		Emails:              []string{"a@example.com"},
		EmailCount:          1,
		GuaranteedAmenities: []string{"wifi"},
		PotentialAmenities:  []string{"stage"},
		CreatedAt:           "2025-12-01T08:00:00Z",
	}

	row := toRow(in, 7)
	if row.Position != 7 {
		t.Fatalf("position = %d, want 7", row.Position)
	}
	if diff := cmp.Diff(in, fromRow(row)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
