package slot

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func validConfig() *EventConfiguration {
	return &EventConfiguration{
		ID:         uuid.New(),
		ProviderID: uuid.New(),
		Title:      "General Consultation",
		Timezone:   "America/Toronto",
		DailyConfigs: map[string]DayConfig{
			"monday": {
				Enabled: true,
				TimeBlocks: []TimeBlock{
					{Start: "09:00", End: "12:00", SlotDurationMin: 30, BufferMin: 10},
				},
			},
		},
		LocationTypes:            []string{"video", "clinic"},
		PriceCents:               7500,
		MaxBookingDays:           30,
		CancellationThresholdMin: 1440,
	}
}

func TestEventConfiguration_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestEventConfiguration_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EventConfiguration)
	}{
		{"missing provider", func(c *EventConfiguration) { c.ProviderID = uuid.Nil }},
		{"bad timezone", func(c *EventConfiguration) { c.Timezone = "Mars/Olympus" }},
		{"negative horizon", func(c *EventConfiguration) { c.MaxBookingDays = -1 }},
		{"negative threshold", func(c *EventConfiguration) { c.CancellationThresholdMin = -5 }},
		{"unknown weekday", func(c *EventConfiguration) {
			c.DailyConfigs["caturday"] = DayConfig{Enabled: true}
		}},
		{"bad block start", func(c *EventConfiguration) {
			c.DailyConfigs["monday"] = DayConfig{Enabled: true, TimeBlocks: []TimeBlock{
				{Start: "morning", End: "12:00", SlotDurationMin: 30},
			}}
		}},
		{"inverted block", func(c *EventConfiguration) {
			c.DailyConfigs["monday"] = DayConfig{Enabled: true, TimeBlocks: []TimeBlock{
				{Start: "13:00", End: "09:00", SlotDurationMin: 30},
			}}
		}},
		{"zero duration", func(c *EventConfiguration) {
			c.DailyConfigs["monday"] = DayConfig{Enabled: true, TimeBlocks: []TimeBlock{
				{Start: "09:00", End: "12:00", SlotDurationMin: 0},
			}}
		}},
		{"negative buffer", func(c *EventConfiguration) {
			c.DailyConfigs["monday"] = DayConfig{Enabled: true, TimeBlocks: []TimeBlock{
				{Start: "09:00", End: "12:00", SlotDurationMin: 30, BufferMin: -1},
			}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    clock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDayConfigFor(t *testing.T) {
	cfg := validConfig()
	if _, ok := cfg.DayConfigFor(time.Monday); !ok {
		t.Error("expected monday config")
	}
	if _, ok := cfg.DayConfigFor(time.Tuesday); ok {
		t.Error("expected no tuesday config")
	}
}

func TestCancellationThreshold(t *testing.T) {
	cfg := validConfig()
	if got := cfg.CancellationThreshold(); got != 24*time.Hour {
		t.Errorf("threshold = %v, want 24h", got)
	}
}

func TestLocation_Fallback(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = ""
	if cfg.Location() != time.UTC {
		t.Error("empty timezone should fall back to UTC")
	}
}
