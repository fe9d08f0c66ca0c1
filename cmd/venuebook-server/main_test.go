package main

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
)

func TestDefaultRequestTimeoutInterceptor(t *testing.T) {
	interceptor := defaultRequestTimeoutInterceptor(time.Minute)
	info := &grpc.UnaryServerInfo{FullMethod: "/venuebook.v1.BookingService/ListBookings"}

	var deadline time.Time
	handler := func(ctx context.Context, req any) (any, error) {
		deadline, _ = ctx.Deadline()
		return nil, nil
	}

	if _, err := interceptor(context.Background(), nil, info, handler); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Fatalf("deadline = %v, want within a minute", deadline)
	}

	want := time.Now().Add(5 * time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), want)
	defer cancel()
	if _, err := interceptor(ctx, nil, info, handler); err != nil {
		t.Fatalf("interceptor error: %v", err)
	}
	if !deadline.Equal(want) {
		t.Fatalf("caller deadline replaced: got %v, want %v", deadline, want)
	}
}
