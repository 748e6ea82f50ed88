package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/calendar"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/testkit"
)

func newTestAgent(t *testing.T) (*Agent, *testkit.MockCalendarServer, *testkit.CaptureMailer) {
	t.Helper()
	server := testkit.NewMockCalendarServer()
	t.Cleanup(server.Close)

	provider := calendar.NewClient(server.URL(), "primary", "test-key")
	mail := testkit.NewCaptureMailer()
	return New(provider, mail), server, mail
}

func taskMessage(action string, data map[string]any) *proto.AgentMessage {
	return proto.NewMessage("scheduling task", proto.SourceAPI, proto.AgentScheduling, action, data)
}

func TestFindSlotsEmptyCalendar(t *testing.T) {
	a, _, _ := newTestAgent(t)

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionFindSlots, map[string]any{
		"start_date": "2026-09-07",
		"end_date":   "2026-09-07",
	}))
	require.False(t, reply.IsError(), "unexpected error: %s", reply.ErrorMessage())

	data := reply.ReplyData().(map[string]any)
	slots, ok := data["available_slots"].([]calendar.Slot)
	require.True(t, ok)
	// 09:00 through 16:00 starts for a one hour meeting.
	assert.Len(t, slots, 15)
	assert.Equal(t, 9, slots[0].Start.Hour())
	lastStart := slots[len(slots)-1].Start
	assert.Equal(t, 16, lastStart.Hour())
	assert.Equal(t, 0, lastStart.Minute())
}

func TestFindSlotsSkipsBusyWindow(t *testing.T) {
	a, server, _ := newTestAgent(t)

	day := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	server.SeedEvent(calendar.Event{
		Summary: "inspection",
		Start:   day.Add(10 * time.Hour),
		End:     day.Add(11*time.Hour + 30*time.Minute),
	})

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionFindSlots, map[string]any{
		"start_date":       "2026-09-08",
		"end_date":         "2026-09-08",
		"duration_minutes": float64(60),
	}))
	require.False(t, reply.IsError(), "unexpected error: %s", reply.ErrorMessage())

	slots := reply.ReplyData().(map[string]any)["available_slots"].([]calendar.Slot)
	require.NotEmpty(t, slots)
	assert.Equal(t, 9, slots[0].Start.Hour())
	// Next start after the 09:00 slot must clear the busy window.
	assert.Equal(t, 11, slots[1].Start.Hour())
	assert.Equal(t, 30, slots[1].Start.Minute())
}

func TestFindSlotsValidation(t *testing.T) {
	a, _, _ := newTestAgent(t)

	tests := []struct {
		name string
		data map[string]any
	}{
		{"missing start", map[string]any{"end_date": "2026-09-07"}},
		{"bad date format", map[string]any{"start_date": "tomorrow", "end_date": "2026-09-07"}},
		{"end before start", map[string]any{"start_date": "2026-09-09", "end_date": "2026-09-07"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := a.HandleTask(context.Background(), taskMessage(proto.ActionFindSlots, tt.data))
			require.True(t, reply.IsError())
		})
	}
}

func TestScheduleBooksAndConfirms(t *testing.T) {
	a, server, mail := newTestAgent(t)

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionSchedule, map[string]any{
		"summary":    "Showing at 12 Elm St",
		"start_time": "2026-09-10T14:00:00Z",
		"end_time":   "2026-09-10T15:00:00Z",
		"location":   "12 Elm St",
		"attendees":  []any{map[string]any{"email": "buyer@example.com"}},
	}))
	require.False(t, reply.IsError(), "unexpected error: %s", reply.ErrorMessage())

	event, ok := reply.ReplyData().(map[string]any)["event"].(*calendar.Event)
	require.True(t, ok)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "Showing at 12 Elm St", event.Summary)

	booked := server.Events()
	require.Len(t, booked, 1)

	sent := mail.Sent()
	require.Len(t, sent, 1, "exactly one confirmation mail")
	assert.Equal(t, "buyer@example.com", sent[0].To)
	assert.Equal(t, "appointment_confirmation", sent[0].Template)
}

func TestScheduleMailFailureKeepsBooking(t *testing.T) {
	a, server, mail := newTestAgent(t)
	mail.FailWith(errors.New("relay down"))

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionSchedule, map[string]any{
		"summary":    "Closing walkthrough",
		"start_time": "2026-09-11T09:00:00Z",
		"end_time":   "2026-09-11T10:00:00Z",
		"attendees":  []any{map[string]any{"email": "seller@example.com"}},
	}))
	require.True(t, reply.IsError())
	assert.Contains(t, reply.ErrorMessage(), "booked but confirmation failed")
	// Failure to mail does not roll back the calendar.
	assert.Len(t, server.Events(), 1)
}

func TestScheduleValidation(t *testing.T) {
	a, server, _ := newTestAgent(t)

	tests := []struct {
		name string
		data map[string]any
	}{
		{"missing summary", map[string]any{
			"start_time": "2026-09-10T14:00:00Z",
			"end_time":   "2026-09-10T15:00:00Z",
			"attendees":  []any{map[string]any{"email": "a@example.com"}},
		}},
		{"end before start", map[string]any{
			"summary":    "x",
			"start_time": "2026-09-10T15:00:00Z",
			"end_time":   "2026-09-10T14:00:00Z",
			"attendees":  []any{map[string]any{"email": "a@example.com"}},
		}},
		{"no attendees", map[string]any{
			"summary":    "x",
			"start_time": "2026-09-10T14:00:00Z",
			"end_time":   "2026-09-10T15:00:00Z",
		}},
		{"attendee without email", map[string]any{
			"summary":    "x",
			"start_time": "2026-09-10T14:00:00Z",
			"end_time":   "2026-09-10T15:00:00Z",
			"attendees":  []any{map[string]any{"name": "No Mail"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := a.HandleTask(context.Background(), taskMessage(proto.ActionSchedule, tt.data))
			require.True(t, reply.IsError())
			assert.Empty(t, server.Events(), "nothing may be booked on validation failure")
		})
	}
}

func TestReschedule(t *testing.T) {
	a, server, _ := newTestAgent(t)

	day := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)
	eventID := server.SeedEvent(calendar.Event{
		Summary: "Showing",
		Start:   day.Add(10 * time.Hour),
		End:     day.Add(11 * time.Hour),
	})

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionReschedule, map[string]any{
		"event_id":       eventID,
		"new_start_time": "2026-09-12T13:00:00Z",
		"new_end_time":   "2026-09-12T14:00:00Z",
	}))
	require.False(t, reply.IsError(), "unexpected error: %s", reply.ErrorMessage())

	events := server.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 13, events[0].Start.UTC().Hour())
}

func TestRescheduleUnknownEvent(t *testing.T) {
	a, _, _ := newTestAgent(t)

	reply := a.HandleTask(context.Background(), taskMessage(proto.ActionReschedule, map[string]any{
		"event_id":       "nope",
		"new_start_time": "2026-09-12T13:00:00Z",
		"new_end_time":   "2026-09-12T14:00:00Z",
	}))
	require.True(t, reply.IsError())
}
