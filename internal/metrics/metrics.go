// Package metrics exposes Prometheus counters for the booking engine. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuebook"

const (
	OutcomeClear   = "clear"
	OutcomeClash   = "clash"
	OutcomeInvalid = "invalid"

	StageExpiry = "expiry"
	StageClash  = "clash"
)

type Recorder struct {
	bookingsSaved   prometheus.Counter
	clashChecks     *prometheus.CounterVec
	bookingsExpired prometheus.Counter
	parseFailures   *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		bookingsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_saved_total",
			Help:      "Bookings appended to the store.",
		}),
		clashChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clash_checks_total",
			Help:      "Clash checks by outcome.",
		}, []string{"outcome"}),
		bookingsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_expired_total",
			Help:      "Bookings removed by the expiry sweep.",
		}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_record_parse_failures_total",
			Help:      "Stored bookings skipped because their dates or times could not be parsed.",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{r.bookingsSaved, r.clashChecks, r.bookingsExpired, r.parseFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) BookingSaved() {
	if r == nil {
		return
	}
	r.bookingsSaved.Inc()
}

func (r *Recorder) ClashChecked(outcome string) {
	if r == nil {
		return
	}
	r.clashChecks.WithLabelValues(outcome).Inc()
}

func (r *Recorder) BookingsExpired(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.bookingsExpired.Add(float64(n))
}

func (r *Recorder) StoredRecordUnparsable(stage string) {
	if r == nil {
		return
	}
	r.parseFailures.WithLabelValues(stage).Inc()
}
