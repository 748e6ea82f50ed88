package calendar

import (
	"context"
	"fmt"
	"time"
)

// Business-hours window probed by the availability search.
const (
	BusinessDayStartHour = 9
	BusinessDayEndHour   = 17
	probeStep            = 30 * time.Minute
)

// Slot is one free interval the requested duration fits into.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FindAvailableSlots probes each day between startDate and endDate
// (inclusive) in 30-minute steps and returns every interval of the
// requested duration that lies inside 09:00-17:00 and intersects no busy
// event.
func FindAvailableSlots(ctx context.Context, provider Provider, startDate, endDate time.Time, duration time.Duration) ([]Slot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", duration)
	}
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("end date %s before start date %s",
			endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}

	loc := startDate.Location()
	windowStart := time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		BusinessDayStartHour, 0, 0, 0, loc)
	windowEnd := time.Date(endDate.Year(), endDate.Month(), endDate.Day(),
		BusinessDayEndHour, 0, 0, 0, loc)

	busy, err := provider.ListEvents(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), BusinessDayStartHour, 0, 0, 0, loc)
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), BusinessDayEndHour, 0, 0, 0, loc)

		for probe := dayStart; !probe.Add(duration).After(dayEnd); probe = probe.Add(probeStep) {
			slotEnd := probe.Add(duration)
			if !intersectsAny(probe, slotEnd, busy) {
				slots = append(slots, Slot{Start: probe, End: slotEnd})
			}
		}
	}
	return slots, nil
}

// intersectsAny reports whether [start, end) overlaps any busy event.
func intersectsAny(start, end time.Time, busy []Event) bool {
	for i := range busy {
		if start.Before(busy[i].End) && end.After(busy[i].Start) {
			return true
		}
	}
	return false
}
