package billing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogReporter(t *testing.T) {
	r := LogReporter{Logger: zerolog.Nop()}
	if err := r.Report(context.Background(), "inv-123", OutcomeCancelledLate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Report(context.Background(), "", OutcomeCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
