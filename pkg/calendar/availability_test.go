package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	events []Event
}

func (f *fakeProvider) CreateEvent(_ context.Context, event *Event) (*Event, error) {
	f.events = append(f.events, *event)
	return event, nil
}

func (f *fakeProvider) ListEvents(_ context.Context, _, _ time.Time) ([]Event, error) {
	return f.events, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ string, event *Event) (*Event, error) {
	return event, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ string) error {
	return nil
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02T15:04", value)
	require.NoError(t, err)
	return parsed
}

func TestFindAvailableSlotsEmptyCalendar(t *testing.T) {
	start := day(t, "2026-09-07")
	slots, err := FindAvailableSlots(context.Background(), &fakeProvider{}, start, start, time.Hour)
	require.NoError(t, err)

	// 09:00 through 16:00 starts, every 30 minutes
	assert.Len(t, slots, 15)
	assert.Equal(t, at(t, "2026-09-07T09:00"), slots[0].Start)
	assert.Equal(t, at(t, "2026-09-07T16:00"), slots[len(slots)-1].Start)
}

func TestFindAvailableSlotsRespectsBusinessHours(t *testing.T) {
	start := day(t, "2026-09-07")
	slots, err := FindAvailableSlots(context.Background(), &fakeProvider{}, start, start, time.Hour)
	require.NoError(t, err)

	for _, slot := range slots {
		assert.GreaterOrEqual(t, slot.Start.Hour(), BusinessDayStartHour)
		assert.False(t, slot.End.After(at(t, "2026-09-07T17:00")), "slot %v spills past close", slot)
	}
}

func TestFindAvailableSlotsSkipsBusyIntervals(t *testing.T) {
	provider := &fakeProvider{events: []Event{
		{Start: at(t, "2026-09-07T10:00"), End: at(t, "2026-09-07T11:30"), Summary: "inspection"},
	}}

	start := day(t, "2026-09-07")
	slots, err := FindAvailableSlots(context.Background(), provider, start, start, time.Hour)
	require.NoError(t, err)

	for _, slot := range slots {
		overlaps := slot.Start.Before(at(t, "2026-09-07T11:30")) && slot.End.After(at(t, "2026-09-07T10:00"))
		assert.False(t, overlaps, "slot %v intersects busy interval", slot)
	}
	// 09:00 fits exactly before the meeting; 11:30 resumes after it.
	assert.Equal(t, at(t, "2026-09-07T09:00"), slots[0].Start)
	assert.Equal(t, at(t, "2026-09-07T11:30"), slots[1].Start)
}

func TestFindAvailableSlotsMultipleDays(t *testing.T) {
	slots, err := FindAvailableSlots(context.Background(), &fakeProvider{},
		day(t, "2026-09-07"), day(t, "2026-09-08"), 30*time.Minute)
	require.NoError(t, err)

	// 16 half-hour starts per day, two days
	assert.Len(t, slots, 32)
}

func TestFindAvailableSlotsFullyBooked(t *testing.T) {
	provider := &fakeProvider{events: []Event{
		{Start: at(t, "2026-09-07T09:00"), End: at(t, "2026-09-07T17:00")},
	}}

	start := day(t, "2026-09-07")
	slots, err := FindAvailableSlots(context.Background(), provider, start, start, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFindAvailableSlotsValidation(t *testing.T) {
	start := day(t, "2026-09-07")

	_, err := FindAvailableSlots(context.Background(), &fakeProvider{}, start, start, 0)
	assert.Error(t, err)

	_, err = FindAvailableSlots(context.Background(), &fakeProvider{}, start, start.AddDate(0, 0, -1), time.Hour)
	assert.Error(t, err)
}
