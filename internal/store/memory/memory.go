package memory

import (
	"context"
	"slices"
	"sync"

	"venuebook/internal/domain"
	"venuebook/internal/store"
)

// Store keeps bookings in process memory. Loaded slices are copies, so
// callers may mutate them freely.
type Store struct {
	mu       sync.Mutex
	bookings []domain.Booking

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

func New(initial ...domain.Booking) *Store {
	return &Store{bookings: clone(initial)}
}

func (s *Store) Load(ctx context.Context) ([]domain.Booking, error) {
	var out []domain.Booking
	err := s.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		var err error
		out, err = tx.Load(ctx)
		return err
	})
	return out, err
}

func (s *Store) Save(ctx context.Context, bookings []domain.Booking) error {
	return s.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		return tx.Save(ctx, bookings)
	})
}

func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, memoryTx{s: s})
}

// memoryTx is only valid while the store mutex is held.
type memoryTx struct {
	s *Store
}

func (t memoryTx) Load(ctx context.Context) ([]domain.Booking, error) {
	return clone(t.s.bookings), nil
}

func (t memoryTx) Save(ctx context.Context, bookings []domain.Booking) error {
	if t.s.SaveErr != nil {
		return t.s.SaveErr
	}
	t.s.bookings = clone(bookings)
	return nil
}

func clone(in []domain.Booking) []domain.Booking {
	out := make([]domain.Booking, 0, len(in))
	for _, b := range in {
		b.Emails = slices.Clone(b.Emails)
		b.GuaranteedAmenities = slices.Clone(b.GuaranteedAmenities)
		b.PotentialAmenities = slices.Clone(b.PotentialAmenities)
		b.Raw = slices.Clone(b.Raw)
		if b.Capacity != nil {
			c := *b.Capacity
			b.Capacity = &c
		}
		if b.Coverage != nil {
			c := *b.Coverage
			b.Coverage = &c
		}
		if b.Score != nil {
			sc := *b.Score
			b.Score = &sc
		}
		out = append(out, b)
	}
	return out
}
