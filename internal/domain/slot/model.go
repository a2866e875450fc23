package slot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a slot or configuration id is unknown.
	ErrNotFound = errors.New("slot not found")
	// ErrConflict is returned when a status transition loses a race, e.g.
	// two clients reserving the same slot. Callers treat it as retryable.
	ErrConflict = errors.New("slot no longer available")
)

// Status is a time slot's sale state.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusBlocked   Status = "blocked"
)

// TimeSlot maps to the time_slot table. A booked slot carries a back-reference
// to its booking; the pairing is maintained by the reservation engine inside
// one transaction, not by a database cycle.
type TimeSlot struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	ProviderEventID   uuid.UUID  `db:"provider_event_id" json:"provider_event_id"`
	ProviderID        uuid.UUID  `db:"provider_id" json:"provider_id"`
	Date              time.Time  `db:"date" json:"date"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           time.Time  `db:"end_time" json:"end_time"`
	Status            Status     `db:"status" json:"status"`
	BookingID         *uuid.UUID `db:"booking_id" json:"booking_id,omitempty"`
	ConsultationModes []string   `db:"consultation_modes" json:"consultation_modes"`
	PriceCents        int64      `db:"price_cents" json:"price_cents"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Weekday keys used in DailyConfigs.
var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

// TimeBlock is one contiguous bookable window inside a day, sliced into
// slots of SlotDurationMin separated by BufferMin of padding.
type TimeBlock struct {
	Start           string `json:"start"` // "HH:MM", provider-local
	End             string `json:"end"`
	SlotDurationMin int    `json:"slot_duration_min"`
	BufferMin       int    `json:"buffer_min"`
}

// DayConfig is one weekday's availability template.
type DayConfig struct {
	Enabled    bool        `json:"enabled"`
	TimeBlocks []TimeBlock `json:"time_blocks"`
}

// EventConfiguration is a provider's recurring weekly availability template,
// from which concrete slots are materialized, plus the cancellation policy
// applied to bookings against those slots.
type EventConfiguration struct {
	ID                       uuid.UUID            `db:"id" json:"id"`
	ProviderID               uuid.UUID            `db:"provider_id" json:"provider_id"`
	Title                    string               `db:"title" json:"title"`
	DailyConfigs             map[string]DayConfig `db:"daily_configs" json:"daily_configs"`
	Timezone                 string               `db:"timezone" json:"timezone"`
	LocationTypes            []string             `db:"location_types" json:"location_types"`
	PriceCents               int64                `db:"price_cents" json:"price_cents"`
	MaxBookingDays           int                  `db:"max_booking_days" json:"max_booking_days"`
	CancellationThresholdMin int                  `db:"cancellation_threshold_min" json:"cancellation_threshold_min"`
	CreatedAt                time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time            `db:"updated_at" json:"updated_at"`
}

// CancellationThreshold is how long before the appointment start a
// cancellation is still penalty-free.
func (c *EventConfiguration) CancellationThreshold() time.Duration {
	return time.Duration(c.CancellationThresholdMin) * time.Minute
}

// Location returns the configuration's timezone, falling back to UTC.
func (c *EventConfiguration) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayConfigFor returns the template for the given weekday, if present.
func (c *EventConfiguration) DayConfigFor(day time.Weekday) (DayConfig, bool) {
	dc, ok := c.DailyConfigs[weekdayKeys[day]]
	return dc, ok
}

// Validate checks the template for shapes that would make slot generation
// meaningless: unknown weekday keys, unparsable block times, inverted blocks,
// non-positive durations.
func (c *EventConfiguration) Validate() error {
	if c.ProviderID == uuid.Nil {
		return fmt.Errorf("provider_id is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", c.Timezone)
		}
	}
	if c.MaxBookingDays < 0 {
		return fmt.Errorf("max_booking_days must not be negative")
	}
	if c.CancellationThresholdMin < 0 {
		return fmt.Errorf("cancellation_threshold_min must not be negative")
	}

	known := make(map[string]bool, len(weekdayKeys))
	for _, k := range weekdayKeys {
		known[k] = true
	}
	for day, dc := range c.DailyConfigs {
		if !known[day] {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for i, b := range dc.TimeBlocks {
			start, err := parseClock(b.Start)
			if err != nil {
				return fmt.Errorf("%s block %d: %w", day, i, err)
			}
			end, err := parseClock(b.End)
			if err != nil {
				return fmt.Errorf("%s block %d: %w", day, i, err)
			}
			if !end.after(start) {
				return fmt.Errorf("%s block %d: end %q not after start %q", day, i, b.End, b.Start)
			}
			if b.SlotDurationMin <= 0 {
				return fmt.Errorf("%s block %d: slot_duration_min must be positive", day, i)
			}
			if b.BufferMin < 0 {
				return fmt.Errorf("%s block %d: buffer_min must not be negative", day, i)
			}
		}
	}
	return nil
}

// clock is a time-of-day in minutes since midnight.
type clock int

func (c clock) after(other clock) bool { return c > other }

func parseClock(s string) (clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return clock(h*60 + m), nil
}
