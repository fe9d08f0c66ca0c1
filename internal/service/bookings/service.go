package bookings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"venuebook/internal/clock"
	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/store"
)

const (
	MsgInvalidDateTimeFormat = "Invalid date/time format"
	MsgInvalidDateTimeRange  = "Invalid date/time range"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ClashError reports that a booking was refused because the venue is
// already taken. It matches store.ErrConflict under errors.Is.
type ClashError struct {
	Clashes []domain.ClashingBooking
}

func (e *ClashError) Error() string {
	return fmt.Sprintf("venue already booked: %d clashing booking(s)", len(e.Clashes))
}

func (e *ClashError) Unwrap() error {
	return store.ErrConflict
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLocation sets the zone dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.pub = p }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	store   store.BookingStore
	clock   clock.Clock
	loc     *time.Location
	log     *slog.Logger
	pub     EventPublisher
	metrics *metrics.Recorder

	idMu         sync.Mutex
	lastIDMillis int64
}

func NewService(st store.BookingStore, opts ...Option) *Service {
	s := &Service{
		store: st,
		clock: clock.NewRealClock(),
		loc:   time.Local,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("component", "service.bookings"))
	return s
}

type ClashQuery struct {
	VenueID  string `json:"venueId"`
	DateFrom string `json:"dateFrom"`
	DateTo   string `json:"dateTo"`
	TimeFrom string `json:"timeFrom"`
	TimeTo   string `json:"timeTo"`
}

// SaveInput is a parsed booking request. Every field is optional as far as
// SaveBooking is concerned; TryBook requires a venue and a valid interval.
type SaveInput struct {
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

	IdempotencyKey string `json:"-"`
}

func (in SaveInput) booking() domain.Booking {
	return domain.Booking{
		VenueID:             in.VenueID,
		VenueName:           in.VenueName,
		VenueGroup:          in.VenueGroup,
		EventName:           in.EventName,
		EventDescription:    in.EventDescription,
		DateFrom:            in.DateFrom,
		DateTo:              in.DateTo,
		TimeFrom:            in.TimeFrom,
		TimeTo:              in.TimeTo,
		Capacity:            in.Capacity,
		Coverage:            in.Coverage,
		Score:               in.Score,
		Emails:              orEmpty(in.Emails),
		EmailCount:          in.EmailCount,
		GuaranteedAmenities: orEmpty(in.GuaranteedAmenities),
		PotentialAmenities:  orEmpty(in.PotentialAmenities),
	}
}

// orEmpty keeps list fields stored as [] rather than null.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RemoveExpiredBookings drops every booking whose end instant is not after
// now. Bookings with a missing or unparsable end are kept.
func (s *Service) RemoveExpiredBookings(ctx context.Context) error {
	return s.store.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		_, err := s.loadAndSweep(ctx, tx, false)
		return err
	})
}

func (s *Service) GetAllBookings(ctx context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		out, err = s.loadAndSweep(ctx, tx, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("bookings listed", slog.Int("count", len(out)))
	return out, nil
}

// CheckForClashes reports existing bookings of the same venue whose closed
// interval overlaps the proposed one. An unusable proposed interval yields
// HasClash false with Error set.
func (s *Service) CheckForClashes(ctx context.Context, q ClashQuery) (domain.ClashResult, error) {
	var result domain.ClashResult
	err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		bookings, err := s.loadAndSweep(ctx, tx, false)
		if err != nil {
			return err
		}

		proposed, err := domain.ParseInterval(q.DateFrom, q.DateTo, q.TimeFrom, q.TimeTo, s.loc)
		if err != nil {
			s.log.Info("clash check with invalid date/time", slog.String("venue_id", q.VenueID), slog.Any("err", err))
			s.metrics.ClashChecked(metrics.OutcomeInvalid)
			result = domain.ClashResult{Error: MsgInvalidDateTimeFormat}
			return nil
		}
		if proposed.Inverted() {
			s.log.Info("clash check with inverted interval", slog.String("venue_id", q.VenueID))
			s.metrics.ClashChecked(metrics.OutcomeInvalid)
			result = domain.ClashResult{Error: MsgInvalidDateTimeRange}
			return nil
		}

		clashes := s.findClashes(bookings, q.VenueID, proposed)
		result = domain.ClashResult{HasClash: len(clashes) > 0, ClashingBookings: clashes}
		return nil
	})
	if err != nil {
		return domain.ClashResult{}, err
	}

	if result.Error == "" {
		outcome := metrics.OutcomeClear
		if result.HasClash {
			outcome = metrics.OutcomeClash
		}
		s.metrics.ClashChecked(outcome)
		s.log.Debug(
			"clash check",
			slog.String("venue_id", q.VenueID),
			slog.Bool("has_clash", result.HasClash),
			slog.Int("clashes", len(result.ClashingBookings)),
		)
	}
	return result, nil
}

// SaveBooking appends a booking without checking for clashes; callers are
// expected to run CheckForClashes first. The two calls are not atomic: two
// callers can both see no clash and both save. TryBook closes that gap.
func (s *Service) SaveBooking(ctx context.Context, in SaveInput) (domain.Booking, error) {
	if iv, err := domain.ParseInterval(in.DateFrom, in.DateTo, in.TimeFrom, in.TimeTo, s.loc); err == nil && iv.Inverted() {
		return domain.Booking{}, validationError("end must not be before start")
	}
	return s.book(ctx, in, false)
}

// TryBook checks for clashes and appends in one transaction.
func (s *Service) TryBook(ctx context.Context, in SaveInput) (domain.Booking, error) {
	if strings.TrimSpace(in.VenueID) == "" {
		return domain.Booking{}, validationError("venueId is required")
	}
	iv, err := domain.ParseInterval(in.DateFrom, in.DateTo, in.TimeFrom, in.TimeTo, s.loc)
	if err != nil {
		return domain.Booking{}, validationError(MsgInvalidDateTimeFormat)
	}
	if iv.Inverted() {
		return domain.Booking{}, validationError("end must not be before start")
	}
	return s.book(ctx, in, true)
}

func (s *Service) book(ctx context.Context, in SaveInput, checkClashes bool) (domain.Booking, error) {
	var (
		out      domain.Booking
		replayed bool
	)

	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 256 {
		return domain.Booking{}, validationError("idempotency_key too long")
	}

	err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		bookings, err := s.loadAndSweep(ctx, tx, true)
		if err != nil {
			return err
		}

		var id string
		if key != "" {
			id = idempotentBookingID(in.VenueID, key)
			existing, ok, err := findReplay(bookings, id, in)
			if err != nil {
				return err
			}
			if ok {
				out = existing
				replayed = true
				return nil
			}
		}

		if checkClashes {
			proposed, err := domain.ParseInterval(in.DateFrom, in.DateTo, in.TimeFrom, in.TimeTo, s.loc)
			if err != nil {
				return validationError(MsgInvalidDateTimeFormat)
			}
			if clashes := s.findClashes(bookings, in.VenueID, proposed); len(clashes) > 0 {
				return &ClashError{Clashes: clashes}
			}
		}

		b := in.booking()
		if id == "" {
			id = s.nextBookingID(in.VenueID, bookings)
		}
		b.BookingID = id
		b.CreatedAt = s.clock.Now().In(s.loc).Format(time.RFC3339Nano)

		if err := tx.Save(ctx, append(bookings, b)); err != nil {
			return errors.Wrap(err, "save bookings")
		}
		out = b
		return nil
	})
	if err != nil {
		var clashErr *ClashError
		if errors.As(err, &clashErr) {
			s.metrics.ClashChecked(metrics.OutcomeClash)
			s.log.Info("booking refused: venue already booked",
				slog.String("venue_id", in.VenueID),
				slog.Int("clashes", len(clashErr.Clashes)),
			)
		}
		return domain.Booking{}, err
	}

	if replayed {
		s.log.Info("booking replayed", slog.String("booking_id", out.BookingID), slog.String("venue_id", out.VenueID))
		return out, nil
	}

	if checkClashes {
		s.metrics.ClashChecked(metrics.OutcomeClear)
	}
	s.metrics.BookingSaved()
	s.log.Info(
		"booking saved",
		slog.String("booking_id", out.BookingID),
		slog.String("venue_id", out.VenueID),
		slog.String("event_name", out.EventName),
	)
	s.publishCreated(ctx, out)
	return out, nil
}

func (s *Service) publishCreated(ctx context.Context, b domain.Booking) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishJSON(ctx, events.KeyBookingCreated, events.NewBookingCreated(b)); err != nil {
		s.log.Warn("booking event publish failed", slog.Any("err", err), slog.String("booking_id", b.BookingID))
	}
}

// loadAndSweep returns the bookings that survive the expiry sweep,
// persisting the survivors when anything was removed. An unreadable store
// is treated as empty; on the write path only a store already marked
// corrupt (and moved aside) is, so a transient read failure cannot end in
// the store being overwritten.
func (s *Service) loadAndSweep(ctx context.Context, tx store.BookingTx, forWrite bool) ([]domain.Booking, error) {
	bookings, err := tx.Load(ctx)
	if err != nil {
		if forWrite && !errors.Is(err, store.ErrCorrupt) {
			return nil, errors.Wrap(err, "load bookings")
		}
		s.log.Warn("booking store unreadable; continuing with an empty store", slog.Any("err", err))
		return []domain.Booking{}, nil
	}

	now := s.clock.Now()
	kept := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if s.expired(b, now) {
			s.log.Info(
				"removing expired booking",
				slog.String("booking_id", b.BookingID),
				slog.String("venue_id", b.VenueID),
				slog.String("event_name", b.EventName),
			)
			continue
		}
		kept = append(kept, b)
	}

	removed := len(bookings) - len(kept)
	if removed == 0 {
		return bookings, nil
	}
	if err := tx.Save(ctx, kept); err != nil {
		return nil, errors.Wrap(err, "save bookings after expiry sweep")
	}
	s.metrics.BookingsExpired(removed)
	s.log.Info("expired bookings removed", slog.Int("removed", removed), slog.Int("remaining", len(kept)))
	return kept, nil
}

func (s *Service) expired(b domain.Booking, now time.Time) bool {
	if b.DateTo == "" || b.TimeTo == "" {
		return false
	}
	end, err := b.End(s.loc)
	if err != nil {
		s.warnUnparsable(b, "dateTo/timeTo", metrics.StageExpiry, err)
		return false
	}
	return !end.After(now)
}

func (s *Service) findClashes(bookings []domain.Booking, venueID string, proposed domain.Interval) []domain.ClashingBooking {
	// No venue means no clash, even against stored records that also lack
	// a venueId.
	if venueID == "" {
		return nil
	}

	var out []domain.ClashingBooking
	for _, b := range bookings {
		if b.VenueID != venueID {
			continue
		}
		if b.DateFrom == "" || b.DateTo == "" || b.TimeFrom == "" || b.TimeTo == "" {
			continue
		}
		existing, err := b.Interval(s.loc)
		if err != nil {
			s.warnUnparsable(b, "interval", metrics.StageClash, err)
			continue
		}
		if proposed.Overlaps(existing) {
			out = append(out, domain.SummarizeClash(b))
		}
	}
	return out
}

func (s *Service) warnUnparsable(b domain.Booking, field, stage string, err error) {
	s.metrics.StoredRecordUnparsable(stage)
	s.log.Warn(
		"stored booking has unparsable date/time; skipping",
		slog.String("booking_id", b.BookingID),
		slog.String("venue_id", b.VenueID),
		slog.String("field", field),
		slog.String("stage", stage),
		slog.Any("err", err),
	)
}

// nextBookingID returns "<unix millis>-<venueId>". Millis never repeat
// within a process and skip past ids already in the store.
func (s *Service) nextBookingID(venueID string, existing []domain.Booking) string {
	if venueID == "" {
		venueID = "unknown"
	}

	taken := make(map[string]struct{}, len(existing))
	for _, b := range existing {
		taken[b.BookingID] = struct{}{}
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()

	ms := s.clock.Now().UnixMilli()
	if ms <= s.lastIDMillis {
		ms = s.lastIDMillis + 1
	}
	for {
		id := strconv.FormatInt(ms, 10) + "-" + venueID
		if _, ok := taken[id]; !ok {
			s.lastIDMillis = ms
			return id
		}
		ms++
	}
}

func idempotentBookingID(venueID, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("venuebook:book:"+venueID+":"+key)).String()
}

func findReplay(bookings []domain.Booking, id string, in SaveInput) (domain.Booking, bool, error) {
	for _, b := range bookings {
		if b.BookingID != id {
			continue
		}
		if b.VenueID != in.VenueID ||
			b.EventName != in.EventName ||
			b.DateFrom != in.DateFrom ||
			b.DateTo != in.DateTo ||
			b.TimeFrom != in.TimeFrom ||
			b.TimeTo != in.TimeTo {
			return domain.Booking{}, false, store.ErrIdempotencyConflict
		}
		return b, true, nil
	}
	return domain.Booking{}, false, nil
}
