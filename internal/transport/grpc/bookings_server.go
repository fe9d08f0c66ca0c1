package grpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"venuebook/internal/domain"
	"venuebook/internal/service/bookings"
	"venuebook/internal/store"
)

type BookingsServer struct {
	svc bookingService
	log *slog.Logger
}

var _ BookingServiceServer = (*BookingsServer)(nil)

type bookingService interface {
	CheckForClashes(ctx context.Context, q bookings.ClashQuery) (domain.ClashResult, error)
	SaveBooking(ctx context.Context, in bookings.SaveInput) (domain.Booking, error)
	TryBook(ctx context.Context, in bookings.SaveInput) (domain.Booking, error)
	GetAllBookings(ctx context.Context) ([]domain.Booking, error)
	RemoveExpiredBookings(ctx context.Context) error
}

func NewBookingsServer(svc bookingService, log *slog.Logger) *BookingsServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.bookings")),
	}
}

// tryBookResult is the TryBook response. A refused booking is a normal
// result carrying the clashes, not an RPC error.
type tryBookResult struct {
	Booked           bool                     `json:"booked"`
	Booking          *domain.Booking          `json:"booking,omitempty"`
	ClashingBookings []domain.ClashingBooking `json:"clashingBookings,omitempty"`
}

type listResult struct {
	Bookings []domain.Booking `json:"bookings"`
}

func (s *BookingsServer) CheckForClashes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CheckForClashes"))

	var q bookings.ClashQuery
	if err := decodeStruct(req, &q); err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, "request fields must be strings")
	}

	result, err := s.svc.CheckForClashes(ctx, q)
	if err != nil {
		log.Error("clash check failed", slog.Any("err", err), slog.String("venue_id", q.VenueID))
		return nil, status.Error(codes.Internal, "internal error")
	}

	return s.respond(log, result)
}

func (s *BookingsServer) SaveBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "SaveBooking"))

	in, err := s.saveInput(ctx, log, req)
	if err != nil {
		return nil, err
	}

	b, err := s.svc.SaveBooking(ctx, in)
	if err != nil {
		return nil, s.bookingError(log, "booking save failed", in, err)
	}

	return s.respond(log, b)
}

func (s *BookingsServer) TryBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "TryBook"))

	in, err := s.saveInput(ctx, log, req)
	if err != nil {
		return nil, err
	}

	b, err := s.svc.TryBook(ctx, in)
	if err != nil {
		var clashErr *bookings.ClashError
		if errors.As(err, &clashErr) {
			log.Info("booking refused", slog.String("venue_id", in.VenueID), slog.Int("clashes", len(clashErr.Clashes)))
			return s.respond(log, tryBookResult{ClashingBookings: clashErr.Clashes})
		}
		return nil, s.bookingError(log, "booking failed", in, err)
	}

	return s.respond(log, tryBookResult{Booked: true, Booking: &b})
}

func (s *BookingsServer) ListBookings(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListBookings"))

	all, err := s.svc.GetAllBookings(ctx)
	if err != nil {
		log.Error("bookings list failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	if all == nil {
		all = []domain.Booking{}
	}

	log.Debug("bookings listed", slog.Int("count", len(all)))
	return s.respond(log, listResult{Bookings: all})
}

func (s *BookingsServer) RemoveExpiredBookings(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	log := s.log.With(slog.String("rpc", "RemoveExpiredBookings"))

	if err := s.svc.RemoveExpiredBookings(ctx); err != nil {
		log.Error("expiry sweep failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &emptypb.Empty{}, nil
}

func (s *BookingsServer) saveInput(ctx context.Context, log *slog.Logger, req *structpb.Struct) (bookings.SaveInput, error) {
	var in bookings.SaveInput
	if err := decodeStruct(req, &in); err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return bookings.SaveInput{}, status.Error(codes.InvalidArgument, "request does not match the booking record shape")
	}
	in.IdempotencyKey = idempotencyKey(ctx)
	return in, nil
}

func (s *BookingsServer) bookingError(log *slog.Logger, msg string, in bookings.SaveInput, err error) error {
	if errors.Is(err, store.ErrIdempotencyConflict) {
		log.Info("booking idempotency conflict", slog.String("venue_id", in.VenueID))
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	}
	var vErr *bookings.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err), slog.String("venue_id", in.VenueID))
		return status.Error(codes.InvalidArgument, vErr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn(msg, slog.Any("err", err), slog.String("venue_id", in.VenueID))
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	if errors.Is(err, context.Canceled) {
		log.Warn(msg, slog.Any("err", err), slog.String("venue_id", in.VenueID))
		return status.Error(codes.Canceled, "request canceled")
	}
	log.Error(msg, slog.Any("err", err), slog.String("venue_id", in.VenueID))
	return status.Error(codes.Internal, "internal error")
}

func (s *BookingsServer) respond(log *slog.Logger, v any) (*structpb.Struct, error) {
	out, err := encodeStruct(v)
	if err != nil {
		log.Error("response encode failed", slog.Any("err", err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
