package domain

import (
	"context"

	"github.com/google/uuid"
)

// ReminderSource lists events whose (day, month) falls inside a window.
// Results keep a stable source order (creation order).
type ReminderSource interface {
	ListByWindow(ctx context.Context, w Window) ([]Event, error)
}

// UserResolver loads an event's owner. Absent users yield ErrNotFound.
type UserResolver interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}

// IdempotencyLedger records terminal delivery outcomes.
//
// GetCompletion returns ErrNotFound when no record exists; AddCompletion
// returns ErrAlreadyRecorded when the key is taken.
type IdempotencyLedger interface {
	GetCompletion(ctx context.Context, key CompletionKey) (CompletionRecord, error)
	AddCompletion(ctx context.Context, rec CompletionRecord) error
}
