package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}

	r.BookingSaved()
	r.BookingSaved()
	r.ClashChecked(OutcomeClash)
	r.ClashChecked(OutcomeClear)
	r.ClashChecked(OutcomeClear)
	r.BookingsExpired(3)
	r.BookingsExpired(0)
	r.StoredRecordUnparsable(StageExpiry)

	if got := testutil.ToFloat64(r.bookingsSaved); got != 2 {
		t.Fatalf("bookings_saved_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.clashChecks.WithLabelValues(OutcomeClear)); got != 2 {
		t.Fatalf("clash_checks_total{clear} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.bookingsExpired); got != 3 {
		t.Fatalf("bookings_expired_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.parseFailures.WithLabelValues(StageExpiry)); got != 1 {
		t.Fatalf("parse failures{expiry} = %v, want 1", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.BookingSaved()
	r.ClashChecked(OutcomeInvalid)
	r.BookingsExpired(1)
	r.StoredRecordUnparsable(StageClash)
}

func TestNewRecorder_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewRecorder(reg); err != nil {
		t.Fatalf("first NewRecorder error: %v", err)
	}
	if _, err := NewRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
