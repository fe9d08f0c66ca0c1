package store

import "github.com/cockroachdb/errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrCorrupt             = errors.New("booking store corrupted")
)
