package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var ErrInvalidDateTime = errors.New("invalid date/time")

// Booking is a persisted reservation of a venue. The JSON names are the
// on-disk field names and must not change.
type Booking struct {
	BookingID           string   `json:"bookingId"`
	VenueID             string   `json:"venueId"`
	VenueName           string   `json:"venueName"`
	VenueGroup          string   `json:"venueGroup"`
	EventName           string   `json:"eventName"`
	EventDescription    string   `json:"eventDescription"`
	DateFrom            string   `json:"dateFrom"`
	DateTo              string   `json:"dateTo"`
	TimeFrom            string   `json:"timeFrom"`
	TimeTo              string   `json:"timeTo"`
	Capacity            *int     `json:"capacity"`
	Coverage            *float64 `json:"coverage"`
	Score               *float64 `json:"score"`
	Emails              []string `json:"emails"`
	EmailCount          int      `json:"emailCount"`
	GuaranteedAmenities []string `json:"guaranteedAmenities"`
	PotentialAmenities  []string `json:"potentialAmenities"`
	CreatedAt           string   `json:"createdAt"`

	// Raw is the stored JSON of a record that did not decode cleanly. Stores
	// write it back verbatim instead of re-encoding the fields.
	Raw json.RawMessage `json:"-"`
}

// DecodeStored decodes one stored record. A value of the wrong type leaves
// its field zero and the remaining fields are still decoded, so the record
// takes part in clash checks and expiry as far as its readable fields allow.
// Such a record comes back with Raw set together with the decode error.
func DecodeStored(data []byte) (Booking, error) {
	var b Booking
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		b.Raw = slices.Clone(data)
		return b, errors.New("stored record is null")
	}
	if err := json.Unmarshal(data, &b); err != nil {
		// encoding/json allocates a pointer before rejecting the value.
		var fields map[string]json.RawMessage
		if json.Unmarshal(data, &fields) == nil {
			dropInvalid(fields["capacity"], &b.Capacity)
			dropInvalid(fields["coverage"], &b.Coverage)
			dropInvalid(fields["score"], &b.Score)
		}
		b.Raw = slices.Clone(data)
		return b, errors.Wrap(err, "decode stored booking")
	}
	return b, nil
}

func dropInvalid[T any](raw json.RawMessage, field **T) {
	var v *T
	if raw == nil || json.Unmarshal(raw, &v) != nil {
		*field = nil
	}
}

// Start combines DateFrom and TimeFrom in loc.
func (b Booking) Start(loc *time.Location) (time.Time, error) {
	return ParseInstant(b.DateFrom, b.TimeFrom, loc)
}

// End combines DateTo and TimeTo in loc.
func (b Booking) End(loc *time.Location) (time.Time, error) {
	return ParseInstant(b.DateTo, b.TimeTo, loc)
}

// Interval returns the closed interval the booking occupies.
func (b Booking) Interval(loc *time.Location) (Interval, error) {
	return ParseInterval(b.DateFrom, b.DateTo, b.TimeFrom, b.TimeTo, loc)
}

// ParseInstant combines a YYYY-MM-DD date and an HH:MM wall-clock time.
// Both parts must be zero-padded; "9:00" and "2024-1-1" are rejected.
func ParseInstant(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if len(date) != len(DateLayout) || len(clock) != len(TimeLayout) {
		return time.Time{}, errors.Wrapf(ErrInvalidDateTime, "%q %q", date, clock)
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, errors.Mark(errors.Wrapf(err, "parse %q %q", date, clock), ErrInvalidDateTime)
	}
	return t, nil
}

type Interval struct {
	Start time.Time
	End   time.Time
}

func ParseInterval(dateFrom, dateTo, timeFrom, timeTo string, loc *time.Location) (Interval, error) {
	start, err := ParseInstant(dateFrom, timeFrom, loc)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseInstant(dateTo, timeTo, loc)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

func (i Interval) Inverted() bool {
	return i.Start.After(i.End)
}

// Overlaps treats both intervals as closed: one ending exactly when the
// other begins is an overlap.
func (i Interval) Overlaps(other Interval) bool {
	return !i.Start.After(other.End) && !other.Start.After(i.End)
}

// ClashingBooking is the summary of an existing booking reported by a clash
// check.
type ClashingBooking struct {
	EventName string `json:"eventName"`
	DateFrom  string `json:"dateFrom"`
	DateTo    string `json:"dateTo"`
	TimeFrom  string `json:"timeFrom"`
	TimeTo    string `json:"timeTo"`
}

const UnknownEventName = "Unknown Event"

func SummarizeClash(b Booking) ClashingBooking {
	name := b.EventName
	if name == "" {
		name = UnknownEventName
	}
	return ClashingBooking{
		EventName: name,
		DateFrom:  b.DateFrom,
		DateTo:    b.DateTo,
		TimeFrom:  b.TimeFrom,
		TimeTo:    b.TimeTo,
	}
}

// ClashResult is the outcome of a clash check. Error is set only when the
// proposed interval itself could not be used, so an empty Error with
// HasClash false is a genuine "no clash".
type ClashResult struct {
	HasClash         bool              `json:"hasClash"`
	ClashingBookings []ClashingBooking `json:"clashingBookings,omitempty"`
	Error            string            `json:"error,omitempty"`
}
