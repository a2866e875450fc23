package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/slot"
	"github.com/carebook/carebook/internal/platform/auth"
	"github.com/carebook/carebook/internal/platform/billing"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/notification"
)

// NoShowParty names who failed to appear.
type NoShowParty string

const (
	NoShowClient   NoShowParty = "client"
	NoShowProvider NoShowParty = "provider"
)

// CancelResult is what Cancel returns: the updated booking plus whether the
// cancellation landed inside the penalty window. The cancellation itself
// always succeeds either way; the flag only drives the billing outcome.
type CancelResult struct {
	Booking           *Booking
	ThresholdExceeded bool
}

// Service is the reservation engine. Every mutating operation runs its
// booking-row and slot-row writes inside a single transaction, so a failed
// compare-and-set on either side rolls both back.
type Service struct {
	bookings Repository
	slots    slot.Repository
	configs  slot.ConfigRepository
	tx       db.TxRunner
	notifier notification.Notifier
	billing  billing.Reporter
	logger   zerolog.Logger

	// now is swapped in tests.
	now func() time.Time
}

func NewService(bookings Repository, slots slot.Repository, configs slot.ConfigRepository,
	tx db.TxRunner, notifier notification.Notifier, reporter billing.Reporter, logger zerolog.Logger) *Service {
	return &Service{
		bookings: bookings,
		slots:    slots,
		configs:  configs,
		tx:       tx,
		notifier: notifier,
		billing:  reporter,
		logger:   logger.With().Str("component", "booking_service").Logger(),
		now:      time.Now,
	}
}

// Create requests a booking for an available slot. The pending booking row
// and the slot reservation commit atomically; losing the reservation race
// rolls both back, so no orphan booking rows survive a conflict.
func (s *Service) Create(ctx context.Context, actor auth.Actor, slotID uuid.UUID) (*Booking, error) {
	if !actor.HasRole(auth.RoleClient) && !actor.IsAdmin() {
		return nil, &ForbiddenError{Reason: "only clients may request bookings"}
	}

	var b *Booking
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sl, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			if errors.Is(err, slot.ErrNotFound) {
				return &NotFoundError{Resource: "slot", ID: slotID.String()}
			}
			return err
		}
		if sl.Status != slot.StatusAvailable {
			return &ConflictError{Reason: "slot is no longer available"}
		}
		if !sl.StartTime.After(s.now()) {
			return &ValidationError{Field: "slot_id", Reason: "slot start time has passed"}
		}

		b = &Booking{
			ID:            uuid.New(),
			ClientID:      actor.ID,
			ProviderID:    sl.ProviderID,
			SlotID:        sl.ID,
			Status:        StatusPending,
			PaymentStatus: PaymentUnpaid,
			BookedAt:      s.now(),
		}
		if err := s.bookings.Create(ctx, b); err != nil {
			return err
		}
		if err := s.slots.Reserve(ctx, sl.ID, b.ID); err != nil {
			if errors.Is(err, slot.ErrConflict) {
				return &ConflictError{Reason: "slot is no longer available"}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", b.ID.String()).
		Str("slot_id", slotID.String()).
		Msg("booking requested")
	s.notify(ctx, b.ProviderID, notification.EventBookingRequested, b)
	return b, nil
}

// Confirm moves a pending booking to confirmed, stamping the confirmation
// time exactly once.
func (s *Service) Confirm(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.getOwnedByProvider(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() || b.Status == StatusConfirmed {
		return nil, &BusinessLogicError{Reason: fmt.Sprintf("cannot confirm a %s booking", b.Status)}
	}

	now := s.now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.UpdateStatusFrom(ctx, id, []Status{StatusPending}, StatusConfirmed,
			StatusChange{ConfirmationTimestamp: &now})
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{Reason: "booking is no longer pending"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.Status = StatusConfirmed
	b.ConfirmationTimestamp = &now
	s.logger.Info().Str("booking_id", id.String()).Msg("booking confirmed")
	s.notify(ctx, b.ClientID, notification.EventBookingConfirmed, b)
	s.report(ctx, b, billing.OutcomeConfirmed)
	return b, nil
}

// Reject declines a pending booking and puts the slot back on sale.
func (s *Service) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*Booking, error) {
	b, err := s.getOwnedByProvider(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, &BusinessLogicError{Reason: fmt.Sprintf("cannot reject a %s booking", b.Status)}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.UpdateStatusFrom(ctx, id, []Status{StatusPending}, StatusRejected,
			StatusChange{RejectionReason: &reason})
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{Reason: "booking is no longer pending"}
		}
		return s.slots.Release(ctx, b.SlotID)
	})
	if err != nil {
		return nil, err
	}

	b.Status = StatusRejected
	b.RejectionReason = &reason
	s.logger.Info().Str("booking_id", id.String()).Msg("booking rejected")
	s.notify(ctx, b.ClientID, notification.EventBookingRejected, b)
	s.report(ctx, b, billing.OutcomeRejected)
	return b, nil
}

// Cancel withdraws a pending or confirmed booking and releases the slot.
// Cancelling past the event configuration's threshold still succeeds; the
// result flags it so billing can apply the forfeiture policy.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*CancelResult, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.ClientID && actor.ID != b.ProviderID {
		return nil, &ForbiddenError{Reason: "not a party to this booking"}
	}
	if b.Status.IsTerminal() {
		return nil, &BusinessLogicError{Reason: fmt.Sprintf("cannot cancel a %s booking", b.Status)}
	}

	now := s.now()
	cancelledBy := actor.ID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.UpdateStatusFrom(ctx, id,
			[]Status{StatusPending, StatusConfirmed}, StatusCancelled,
			StatusChange{CancelledAt: &now, CancelledBy: &cancelledBy, CancellationReason: &reason})
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{Reason: "booking already left its cancellable state"}
		}
		return s.slots.Release(ctx, b.SlotID)
	})
	if err != nil {
		return nil, err
	}

	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = &cancelledBy
	b.CancellationReason = &reason

	late := s.thresholdExceeded(ctx, b, now)
	outcome := billing.OutcomeCancelled
	if late {
		outcome = billing.OutcomeCancelledLate
	}
	s.logger.Info().
		Str("booking_id", id.String()).
		Bool("threshold_exceeded", late).
		Msg("booking cancelled")

	other := b.ProviderID
	if actor.ID == b.ProviderID {
		other = b.ClientID
	}
	s.notify(ctx, other, notification.EventBookingCancelled, b)
	s.report(ctx, b, outcome)
	return &CancelResult{Booking: b, ThresholdExceeded: late}, nil
}

// MarkNoShow records that one party failed to appear for a confirmed booking
// whose start time has passed. The slot stays booked; the appointment
// happened, just without one of its parties.
func (s *Service) MarkNoShow(ctx context.Context, actor auth.Actor, id uuid.UUID, who NoShowParty) (*Booking, error) {
	to := StatusNoShowClient
	outcome := billing.OutcomeNoShowClient
	if who == NoShowProvider {
		to = StatusNoShowProvider
		outcome = billing.OutcomeNoShowProvider
	} else if who != NoShowClient {
		return nil, &ValidationError{Field: "party", Reason: "must be client or provider"}
	}
	return s.closeOut(ctx, actor, id, to, notification.EventBookingNoShow, outcome)
}

// Complete records that a confirmed appointment took place.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.ProviderID {
		return nil, &ForbiddenError{Reason: "only the provider may complete a booking"}
	}
	return s.closeOut(ctx, actor, id, StatusCompleted, notification.EventBookingCompleted, billing.OutcomeCompleted)
}

// closeOut is the shared confirmed→terminal path for no-shows and completion.
func (s *Service) closeOut(ctx context.Context, actor auth.Actor, id uuid.UUID, to Status,
	event notification.EventType, outcome billing.Outcome) (*Booking, error) {

	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.ClientID && actor.ID != b.ProviderID {
		return nil, &ForbiddenError{Reason: "not a party to this booking"}
	}
	if b.Status != StatusConfirmed {
		return nil, &BusinessLogicError{Reason: fmt.Sprintf("cannot close out a %s booking", b.Status)}
	}
	sl, err := s.slots.GetByID(ctx, b.SlotID)
	if err != nil {
		return nil, err
	}
	if sl.StartTime.After(s.now()) {
		return nil, &BusinessLogicError{Reason: "appointment has not started yet"}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.UpdateStatusFrom(ctx, id, []Status{StatusConfirmed}, to, StatusChange{})
		if err != nil {
			return err
		}
		if !ok {
			return &ConflictError{Reason: "booking is no longer confirmed"}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.Status = to
	s.logger.Info().Str("booking_id", id.String()).Str("status", string(to)).Msg("booking closed out")
	s.notify(ctx, b.ClientID, event, b)
	s.report(ctx, b, outcome)
	return b, nil
}

// Get returns a booking the actor is allowed to see.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanReadAll() && actor.ID != b.ClientID && actor.ID != b.ProviderID {
		return nil, &ForbiddenError{Reason: "not a party to this booking"}
	}
	return b, nil
}

// List returns bookings visible to the actor. Non-privileged actors are
// pinned to their own side of the marketplace regardless of the filter.
func (s *Service) List(ctx context.Context, actor auth.Actor, f Filter) ([]*Booking, int, error) {
	if !actor.CanReadAll() {
		if actor.HasRole(auth.RoleProvider) {
			f.ProviderID = actor.ID
			f.ClientID = uuid.Nil
		} else {
			f.ClientID = actor.ID
			f.ProviderID = uuid.Nil
		}
	}
	return s.bookings.List(ctx, f)
}

// MarkPaid flips the payment flag. Lifecycle state is untouched; payment and
// lifecycle advance independently.
func (s *Service) MarkPaid(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.ClientID {
		return nil, &ForbiddenError{Reason: "only the client may pay for a booking"}
	}
	if err := s.bookings.SetPaymentStatus(ctx, id, PaymentPaid); err != nil {
		return nil, err
	}
	b.PaymentStatus = PaymentPaid
	return b, nil
}

func (s *Service) getOwnedByProvider(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != b.ProviderID {
		return nil, &ForbiddenError{Reason: "not the provider for this booking"}
	}
	return b, nil
}

// thresholdExceeded walks booking → slot → configuration to apply the
// provider's cancellation policy. Missing pieces fail open: no policy, no
// penalty.
func (s *Service) thresholdExceeded(ctx context.Context, b *Booking, now time.Time) bool {
	sl, err := s.slots.GetByID(ctx, b.SlotID)
	if err != nil {
		return false
	}
	cfg, err := s.configs.GetByID(ctx, sl.ProviderEventID)
	if err != nil || cfg.CancellationThresholdMin <= 0 {
		return false
	}
	return now.After(sl.StartTime.Add(-cfg.CancellationThreshold()))
}

func (s *Service) notify(ctx context.Context, recipient uuid.UUID, event notification.EventType, b *Booking) {
	payload := map[string]string{
		"booking_id": b.ID.String(),
		"slot_id":    b.SlotID.String(),
		"status":     string(b.Status),
	}
	if err := s.notifier.Notify(ctx, recipient, event, payload); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("notification failed")
	}
}

func (s *Service) report(ctx context.Context, b *Booking, outcome billing.Outcome) {
	ref := b.ID.String()
	if b.InvoiceRef != nil {
		ref = *b.InvoiceRef
	}
	if err := s.billing.Report(ctx, ref, outcome); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("billing report failed")
	}
}
