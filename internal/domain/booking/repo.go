package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusChange carries the columns a transition writes alongside the status
// itself. Nil fields are left untouched.
type StatusChange struct {
	ConfirmationTimestamp *time.Time
	CancelledAt           *time.Time
	CancelledBy           *uuid.UUID
	CancellationReason    *string
	RejectionReason       *string
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Status     Status
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// UpdateStatusFrom is the compare-and-set primitive behind every
	// transition: the row is updated only while its status is still one of
	// from. Returns false without error when the guard fails.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from []Status, to Status, set StatusChange) (bool, error)

	List(ctx context.Context, f Filter) ([]*Booking, int, error)

	// FindExpiredPending returns pending, never-confirmed bookings requested
	// at or before cutoff, oldest first, capped at limit.
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
}
