package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type flakySender struct {
	failures int
	calls    int
}

func (s *flakySender) Send(_ context.Context, _ Record) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("transport down")
	}
	return nil
}

func TestDispatcher_DeliversAndRecords(t *testing.T) {
	sender := &flakySender{}
	d := NewDispatcher(sender, zerolog.Nop())

	recipient := uuid.New()
	err := d.Notify(context.Background(), recipient, EventBookingConfirmed, map[string]string{"booking_id": "b1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := d.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Recipient != recipient {
		t.Errorf("unexpected recipient: %s", records[0].Recipient)
	}
	if records[0].Event != EventBookingConfirmed {
		t.Errorf("unexpected event: %s", records[0].Event)
	}
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	sender := &flakySender{failures: 2}
	d := NewDispatcher(sender, zerolog.Nop())

	err := d.Notify(context.Background(), uuid.New(), EventBookingRejected, nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if sender.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", sender.calls)
	}
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	sender := &flakySender{failures: 10}
	d := NewDispatcher(sender, zerolog.Nop())

	err := d.Notify(context.Background(), uuid.New(), EventBookingAutoRejected, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(d.Records()) != 0 {
		t.Error("failed delivery must not be recorded as accepted")
	}
}
