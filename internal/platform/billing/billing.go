// Package billing reports booking outcomes to the external payment platform
// by invoice reference. Capture, refund, and void decisions happen entirely
// on the billing side; this engine only tells it what happened.
package billing

import (
	"context"

	"github.com/rs/zerolog"
)

// Outcome is the booking result the billing platform acts on.
type Outcome string

const (
	OutcomeConfirmed      Outcome = "confirmed"
	OutcomeRejected       Outcome = "rejected"
	OutcomeAutoRejected   Outcome = "auto_rejected"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeCancelledLate  Outcome = "cancelled_late" // past the cancellation threshold; forfeiture policy applies
	OutcomeNoShowClient   Outcome = "no_show_client"
	OutcomeNoShowProvider Outcome = "no_show_provider"
	OutcomeCompleted      Outcome = "completed"
)

// Reporter forwards an outcome for the given invoice reference. A missing
// invoice reference is not an error; unpaid bookings simply have nothing to
// settle.
type Reporter interface {
	Report(ctx context.Context, invoiceRef string, outcome Outcome) error
}

// LogReporter logs outcomes instead of calling a payment provider.
type LogReporter struct {
	Logger zerolog.Logger
}

func (r LogReporter) Report(_ context.Context, invoiceRef string, outcome Outcome) error {
	r.Logger.Info().
		Str("invoice_ref", invoiceRef).
		Str("outcome", string(outcome)).
		Msg("billing outcome")
	return nil
}

// Nop discards outcomes. Used in tests.
type Nop struct{}

func (Nop) Report(context.Context, string, Outcome) error { return nil }
