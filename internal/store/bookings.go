package store

import (
	"context"

	"venuebook/internal/domain"
)

// BookingStore holds the full ordered sequence of bookings. Save replaces
// the whole sequence; readers never observe a partial write.
type BookingStore interface {
	Load(ctx context.Context) ([]domain.Booking, error)
	Save(ctx context.Context, bookings []domain.Booking) error

	// InTransaction runs fn while holding the store's write lock, so a
	// load-mutate-save cycle inside fn cannot interleave with another.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}

type BookingTx interface {
	Load(ctx context.Context) ([]domain.Booking, error)
	Save(ctx context.Context, bookings []domain.Booking) error
}
