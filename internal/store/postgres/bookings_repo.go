package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/uptrace/bun"

	"venuebook/internal/domain"
	"venuebook/internal/store"
)

// bookingsLockKey names the advisory lock that serializes every
// load-mutate-save cycle. Saves rewrite the whole table, so the lock has to
// cover all venues rather than one.
const bookingsLockKey = "venuebook:bookings"

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID           string   `bun:"booking_id,pk"`
	Position            int64    `bun:"position,notnull"`
	VenueID             string   `bun:"venue_id,notnull"`
	VenueName           string   `bun:"venue_name,notnull"`
	VenueGroup          string   `bun:"venue_group,notnull"`
	EventName           string   `bun:"event_name,notnull"`
	EventDescription    string   `bun:"event_description,notnull"`
	DateFrom            string   `bun:"date_from,notnull"`
	DateTo              string   `bun:"date_to,notnull"`
	TimeFrom            string   `bun:"time_from,notnull"`
	TimeTo              string   `bun:"time_to,notnull"`
	Capacity            *int     `bun:"capacity"`
	Coverage            *float64 `bun:"coverage"`
	Score               *float64 `bun:"score"`
	Emails              []string `bun:"emails,array"`
	EmailCount          int      `bun:"email_count,notnull"`
	GuaranteedAmenities []string `bun:"guaranteed_amenities,array"`
	PotentialAmenities  []string `bun:"potential_amenities,array"`
	CreatedAt           string   `bun:"created_at,notnull"`
}

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.IDB
}

func (r *BookingRepo) Load(ctx context.Context) ([]domain.Booking, error) {
	return bookingTx{tx: r.db}.Load(ctx)
}

func (r *BookingRepo) Save(ctx context.Context, bookings []domain.Booking) error {
	return r.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		return tx.Save(ctx, bookings)
	})
}

func (r *BookingRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockBookings(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func lockBookings(ctx context.Context, tx bun.Tx) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", bookingsLockKey).Exec(ctx)
	return errors.Wrap(err, "lock bookings")
}

func (r bookingTx) Load(ctx context.Context) ([]domain.Booking, error) {
	var rows []bookingRow
	err := r.tx.NewSelect().
		Model(&rows).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "select bookings")
	}

	out := make([]domain.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (r bookingTx) Save(ctx context.Context, bookings []domain.Booking) error {
	_, err := r.tx.NewDelete().
		Model((*bookingRow)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "clear bookings")
	}
	if len(bookings) == 0 {
		return nil
	}

	rows := make([]bookingRow, 0, len(bookings))
	for i, b := range bookings {
		rows = append(rows, toRow(b, int64(i)))
	}
	if _, err := r.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return errors.Wrap(err, "insert bookings")
	}
	return nil
}

func toRow(b domain.Booking, position int64) bookingRow {
	return bookingRow{
		BookingID:           b.BookingID,
		Position:            position,
		VenueID:             b.VenueID,
		VenueName:           b.VenueName,
		VenueGroup:          b.VenueGroup,
		EventName:           b.EventName,
		EventDescription:    b.EventDescription,
		DateFrom:            b.DateFrom,
		DateTo:              b.DateTo,
		TimeFrom:            b.TimeFrom,
		TimeTo:              b.TimeTo,
		Capacity:            b.Capacity,
		Coverage:            b.Coverage,
		Score:               b.Score,
		Emails:              b.Emails,
		EmailCount:          b.EmailCount,
		GuaranteedAmenities: b.GuaranteedAmenities,
		PotentialAmenities:  b.PotentialAmenities,
		CreatedAt:           b.CreatedAt,
	}
}

func fromRow(r bookingRow) domain.Booking {
	return domain.Booking{
		BookingID:           r.BookingID,
		VenueID:             r.VenueID,
		VenueName:           r.VenueName,
		VenueGroup:          r.VenueGroup,
		EventName:           r.EventName,
		EventDescription:    r.EventDescription,
		DateFrom:            r.DateFrom,
		DateTo:              r.DateTo,
		TimeFrom:            r.TimeFrom,
		TimeTo:              r.TimeTo,
		Capacity:            r.Capacity,
		Coverage:            r.Coverage,
		Score:               r.Score,
		Emails:              r.Emails,
		EmailCount:          r.EmailCount,
		GuaranteedAmenities: r.GuaranteedAmenities,
		PotentialAmenities:  r.PotentialAmenities,
		CreatedAt:           r.CreatedAt,
	}
}
