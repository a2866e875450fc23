package slot

import (
	"time"

	"github.com/google/uuid"
)

// GenerateSlots materializes concrete slots from a weekly template for every
// day in [rangeStart, rangeEnd]. It is pure: persistence-layer idempotency
// (never duplicating or touching an existing booked/blocked slot) is the
// repository's job via CreateBatch.
//
// No slot is produced that would start before now or after now plus the
// configuration's booking horizon. Block times are interpreted in the
// configuration's timezone.
func GenerateSlots(cfg *EventConfiguration, rangeStart, rangeEnd, now time.Time) []*TimeSlot {
	loc := cfg.Location()

	// rangeEnd is inclusive: iterate through midnight of its calendar day.
	last := time.Date(rangeEnd.In(loc).Year(), rangeEnd.In(loc).Month(), rangeEnd.In(loc).Day(), 0, 0, 0, 0, loc)

	var horizon time.Time
	if cfg.MaxBookingDays > 0 {
		horizon = now.AddDate(0, 0, cfg.MaxBookingDays)
	}

	var slots []*TimeSlot
	day := time.Date(rangeStart.In(loc).Year(), rangeStart.In(loc).Month(), rangeStart.In(loc).Day(), 0, 0, 0, 0, loc)
	for !day.After(last) {
		dc, ok := cfg.DayConfigFor(day.Weekday())
		if ok && dc.Enabled {
			for _, block := range dc.TimeBlocks {
				slots = append(slots, sliceBlock(cfg, day, block, now, horizon)...)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

// sliceBlock cuts one time block of one day into slots, stepping by the
// slot duration plus buffer. A zero horizon means no booking-window limit.
func sliceBlock(cfg *EventConfiguration, day time.Time, block TimeBlock, now, horizon time.Time) []*TimeSlot {
	startMin, err := parseClock(block.Start)
	if err != nil {
		return nil
	}
	endMin, err := parseClock(block.End)
	if err != nil || !endMin.after(startMin) || block.SlotDurationMin <= 0 {
		return nil
	}

	duration := time.Duration(block.SlotDurationMin) * time.Minute
	step := duration + time.Duration(block.BufferMin)*time.Minute

	var slots []*TimeSlot
	cursor := day.Add(time.Duration(startMin) * time.Minute)
	blockEnd := day.Add(time.Duration(endMin) * time.Minute)

	for !cursor.Add(duration).After(blockEnd) {
		slotEnd := cursor.Add(duration)
		if !cursor.Before(now) && (horizon.IsZero() || !cursor.After(horizon)) {
			modes := make([]string, len(cfg.LocationTypes))
			copy(modes, cfg.LocationTypes)
			slots = append(slots, &TimeSlot{
				ID:                uuid.New(),
				ProviderEventID:   cfg.ID,
				ProviderID:        cfg.ProviderID,
				Date:              day,
				StartTime:         cursor,
				EndTime:           slotEnd,
				Status:            StatusAvailable,
				ConsultationModes: modes,
				PriceCents:        cfg.PriceCents,
			})
		}
		cursor = cursor.Add(step)
	}
	return slots
}
