package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is a booking's lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusCompleted      Status = "completed"
	StatusNoShowClient   Status = "no_show_client"
	StatusNoShowProvider Status = "no_show_provider"
)

// PaymentStatus tracks payment independently of the lifecycle state. A paid
// booking can still be cancelled or rejected; reconciliation is billing's job.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// transitions is the full state machine. Absent keys are terminal states.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShowClient, StatusNoShowProvider},
}

// IsTerminal reports whether no further transition can leave the state.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the state machine permits from→to.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Booking maps to the booking table.
type Booking struct {
	ID                    uuid.UUID     `db:"id" json:"id"`
	ClientID              uuid.UUID     `db:"client_id" json:"client_id"`
	ProviderID            uuid.UUID     `db:"provider_id" json:"provider_id"`
	SlotID                uuid.UUID     `db:"slot_id" json:"slot_id"`
	Status                Status        `db:"status" json:"status"`
	PaymentStatus         PaymentStatus `db:"payment_status" json:"payment_status"`
	BookedAt              time.Time     `db:"booked_at" json:"booked_at"`
	ConfirmationTimestamp *time.Time    `db:"confirmation_timestamp" json:"confirmation_timestamp,omitempty"`
	CancelledAt           *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy           *uuid.UUID    `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason    *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RejectionReason       *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	InvoiceRef            *string       `db:"invoice_ref" json:"invoice_ref,omitempty"`
	CreatedAt             time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time     `db:"updated_at" json:"updated_at"`
}

// EligibleForAutoRejection reports whether the sweep should auto-reject the
// booking: still pending, never confirmed, and requested more than window ago.
func EligibleForAutoRejection(b *Booking, window time.Duration, now time.Time) bool {
	if b.Status != StatusPending || b.ConfirmationTimestamp != nil {
		return false
	}
	return !now.Before(b.BookedAt.Add(window))
}

// TimeUntilExpiry is how long a pending booking has left before the sweep
// picks it up. Zero or negative means already expired; non-pending bookings
// never expire.
func TimeUntilExpiry(b *Booking, window time.Duration, now time.Time) time.Duration {
	if b.Status != StatusPending {
		return 0
	}
	return b.BookedAt.Add(window).Sub(now)
}
