// Package notification is the engine's fire-and-forget messaging port.
// Delivery failures are logged and never block or reverse a state
// transition; the real transport (email/push) lives outside this service.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType identifies what happened to a booking.
type EventType string

const (
	EventBookingRequested    EventType = "booking_requested"
	EventBookingConfirmed    EventType = "booking_confirmed"
	EventBookingRejected     EventType = "booking_rejected"
	EventBookingCancelled    EventType = "booking_cancelled"
	EventBookingAutoRejected EventType = "booking_auto_rejected"
	EventBookingNoShow       EventType = "booking_no_show"
	EventBookingCompleted    EventType = "booking_completed"
)

// Notifier delivers a notification to a recipient. Implementations must be
// safe for concurrent use and must never return an error that the caller is
// expected to act on beyond logging.
type Notifier interface {
	Notify(ctx context.Context, recipient uuid.UUID, event EventType, payload map[string]string) error
}

// Record is a delivered (or attempted) notification kept for inspection.
type Record struct {
	ID        uuid.UUID
	Recipient uuid.UUID
	Event     EventType
	Payload   map[string]string
	CreatedAt time.Time
}

// Sender is the downstream transport a Dispatcher hands messages to.
type Sender interface {
	Send(ctx context.Context, rec Record) error
}

// Dispatcher is a Notifier that retries a bounded number of times against a
// Sender and logs terminal failures. It keeps an in-memory log of accepted
// notifications for inspection.
type Dispatcher struct {
	sender     Sender
	logger     zerolog.Logger
	maxRetries int

	mu      sync.Mutex
	records []Record
}

func NewDispatcher(sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger, maxRetries: 3}
}

func (d *Dispatcher) Notify(ctx context.Context, recipient uuid.UUID, event EventType, payload map[string]string) error {
	rec := Record{
		ID:        uuid.New(),
		Recipient: recipient,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	var err error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if err = d.sender.Send(ctx, rec); err == nil {
			break
		}
	}
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("recipient", recipient.String()).
			Str("event", string(event)).
			Msg("notification delivery failed")
		return err
	}

	d.mu.Lock()
	d.records = append(d.records, rec)
	d.mu.Unlock()
	return nil
}

// Records returns a snapshot of accepted notifications.
func (d *Dispatcher) Records() []Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// LogSender is a Sender that only logs; the default wiring until a real
// transport is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, rec Record) error {
	s.Logger.Info().
		Str("recipient", rec.Recipient.String()).
		Str("event", string(rec.Event)).
		Msg("notification")
	return nil
}

// Nop is a Notifier that discards everything. Used in tests and the one-shot
// sweep command.
type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, EventType, map[string]string) error { return nil }
