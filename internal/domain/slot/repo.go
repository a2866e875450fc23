package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the slot store port. Reserve and Release are the atomic
// status transitions the reservation engine builds on; both honor a
// transaction carried in the context.
type Repository interface {
	// CreateBatch inserts generated slots, skipping any (event, date, start)
	// that already exists so regeneration never duplicates or overwrites a
	// booked or blocked slot. Returns the number actually inserted.
	CreateBatch(ctx context.Context, slots []*TimeSlot) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time, status Status, limit, offset int) ([]*TimeSlot, int, error)

	// Reserve flips an available slot to booked with the booking back-ref,
	// guarded by the status check: ErrConflict when a concurrent reservation
	// won, ErrNotFound for an unknown id.
	Reserve(ctx context.Context, slotID, bookingID uuid.UUID) error
	// Release returns a booked slot to available and clears the back-ref.
	// No-op when the slot is already available.
	Release(ctx context.Context, slotID uuid.UUID) error

	// Block takes an available slot off sale; Unblock reverses it.
	Block(ctx context.Context, slotID uuid.UUID) error
	Unblock(ctx context.Context, slotID uuid.UUID) error
}

// ConfigRepository stores provider event configurations.
type ConfigRepository interface {
	Create(ctx context.Context, cfg *EventConfiguration) error
	GetByID(ctx context.Context, id uuid.UUID) (*EventConfiguration, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*EventConfiguration, error)
	Update(ctx context.Context, cfg *EventConfiguration) error

	// Delete fails with ErrConflict while generated slots still reference
	// the configuration.
	Delete(ctx context.Context, id uuid.UUID) error
}
