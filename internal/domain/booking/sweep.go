package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebook/carebook/internal/domain/slot"
	"github.com/carebook/carebook/internal/platform/billing"
	"github.com/carebook/carebook/internal/platform/db"
	"github.com/carebook/carebook/internal/platform/notification"
)

// AutoRejectReason is recorded on every booking the sweep rejects.
const AutoRejectReason = "auto-rejected: provider did not confirm within the confirmation window"

// Stats summarizes one sweep pass.
type Stats struct {
	Scanned   int
	Rejected  int
	Conflicts int
	Failures  int
}

// Sweeper auto-rejects pending bookings whose confirmation window has lapsed.
// Each expired booking is handled in its own transaction with a
// compare-and-set re-check, so the sweep is safe to run concurrently with
// live confirms and cancels, and with another instance of itself.
type Sweeper struct {
	bookings Repository
	slots    slot.Repository
	tx       db.TxRunner
	notifier notification.Notifier
	billing  billing.Reporter
	logger   zerolog.Logger

	window    time.Duration
	batchSize int

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	// now is swapped in tests.
	now func() time.Time
}

func NewSweeper(bookings Repository, slots slot.Repository, tx db.TxRunner,
	notifier notification.Notifier, reporter billing.Reporter,
	window time.Duration, batchSize int, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		bookings:  bookings,
		slots:     slots,
		tx:        tx,
		notifier:  notifier,
		billing:   reporter,
		logger:    logger.With().Str("component", "expiry_sweep").Logger(),
		window:    window,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run executes one sweep pass. Per-row errors are logged and counted; the
// pass keeps going.
func (s *Sweeper) Run(ctx context.Context) Stats {
	var stats Stats

	cutoff := s.now().Add(-s.window)
	expired, err := s.bookings.FindExpiredPending(ctx, cutoff, s.batchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("expired booking scan failed")
		stats.Failures++
		return stats
	}
	stats.Scanned = len(expired)

	for _, b := range expired {
		if err := s.rejectOne(ctx, b); err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				stats.Conflicts++
				continue
			}
			stats.Failures++
			s.logger.Error().Err(err).Str("booking_id", b.ID.String()).Msg("auto-reject failed")
			continue
		}
		stats.Rejected++
		s.report(ctx, b)
		s.notifyBoth(ctx, b)
	}

	if stats.Scanned > 0 {
		s.logger.Info().
			Int("scanned", stats.Scanned).
			Int("rejected", stats.Rejected).
			Int("conflicts", stats.Conflicts).
			Int("failures", stats.Failures).
			Msg("expiry sweep pass complete")
	}
	return stats
}

func (s *Sweeper) rejectOne(ctx context.Context, b *Booking) error {
	reason := AutoRejectReason
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.UpdateStatusFrom(ctx, b.ID, []Status{StatusPending}, StatusRejected,
			StatusChange{RejectionReason: &reason})
		if err != nil {
			return err
		}
		if !ok {
			// A confirm or cancel landed between the scan and this CAS.
			return &ConflictError{Reason: "booking left pending before auto-reject"}
		}
		return s.slots.Release(ctx, b.SlotID)
	})
}

// report is best-effort, like notification: the reject is already committed.
func (s *Sweeper) report(ctx context.Context, b *Booking) {
	ref := b.ID.String()
	if b.InvoiceRef != nil {
		ref = *b.InvoiceRef
	}
	if err := s.billing.Report(ctx, ref, billing.OutcomeAutoRejected); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("billing report failed")
	}
}

func (s *Sweeper) notifyBoth(ctx context.Context, b *Booking) {
	payload := map[string]string{
		"booking_id": b.ID.String(),
		"slot_id":    b.SlotID.String(),
		"reason":     AutoRejectReason,
	}
	if err := s.notifier.Notify(ctx, b.ClientID, notification.EventBookingAutoRejected, payload); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("client notification failed")
	}
	if err := s.notifier.Notify(ctx, b.ProviderID, notification.EventBookingAutoRejected, payload); err != nil {
		s.logger.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("provider notification failed")
	}
}

// Start launches the background ticker loop. Stop shuts it down and waits
// for any in-flight pass to finish.
func (s *Sweeper) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(interval, s.stop, s.done)
}

func (s *Sweeper) loop(interval time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Run(context.Background())
		case <-stop:
			return
		}
	}
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	s.done = nil
}
