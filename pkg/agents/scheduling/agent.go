// Package scheduling implements the scheduling agent: availability search
// and appointment booking against the calendar backend.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/calendar"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/utils"
)

// DefaultSlotMinutes is the probe duration when the task does not name one.
const DefaultSlotMinutes = 60

// Agent answers scheduling tasks.
type Agent struct {
	agentCtx *agent.Context
	provider calendar.Provider
	sender   mailer.Sender
	tools    agent.ToolTable
	logger   *logx.Logger
}

// New creates the scheduling agent.
func New(provider calendar.Provider, sender mailer.Sender) *Agent {
	a := &Agent{
		provider: provider,
		sender:   sender,
		logger:   logx.NewLogger(proto.AgentScheduling),
	}
	a.tools = agent.ToolTable{
		proto.ActionFindSlots:  a.findSlots,
		proto.ActionSchedule:   a.schedule,
		proto.ActionReschedule: a.reschedule,
	}
	a.agentCtx = agent.NewContext(proto.AgentScheduling, "scheduling", a.tools.Actions(),
		[]string{"availability", "appointments"})
	return a
}

// Context returns the agent's runtime context.
func (a *Agent) Context() *agent.Context {
	return a.agentCtx
}

// HandleTask dispatches one scheduling task.
func (a *Agent) HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	return agent.Run(ctx, a.agentCtx, a.tools, a.logger, msg)
}

func (a *Agent) findSlots(ctx context.Context, data map[string]any) (any, error) {
	startRaw, err := utils.GetStringField(data, "start_date")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionFindSlots, "%v", err)
	}
	endRaw, err := utils.GetStringField(data, "end_date")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionFindSlots, "%v", err)
	}

	startDate, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return nil, agent.ValidationError(proto.ActionFindSlots, "invalid start_date %q", startRaw)
	}
	endDate, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return nil, agent.ValidationError(proto.ActionFindSlots, "invalid end_date %q", endRaw)
	}

	minutes := int(utils.GetMapFieldOr(data, "duration_minutes", float64(DefaultSlotMinutes)))
	duration := time.Duration(minutes) * time.Minute

	slots, err := calendar.FindAvailableSlots(ctx, a.provider, startDate, endDate, duration)
	if err != nil {
		return nil, err
	}
	return map[string]any{"available_slots": slots}, nil
}

func (a *Agent) schedule(ctx context.Context, data map[string]any) (any, error) {
	summary, err := utils.GetStringField(data, "summary")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionSchedule, "%v", err)
	}
	start, err := parseEventTime(data, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := parseEventTime(data, "end_time")
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, agent.ValidationError(proto.ActionSchedule, "end_time must follow start_time")
	}

	attendees, err := parseAttendees(data)
	if err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		return nil, agent.ValidationError(proto.ActionSchedule, "at least one attendee is required")
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: utils.GetMapFieldOr(data, "description", ""),
		Location:    utils.GetMapFieldOr(data, "location", ""),
		Start:       start,
		End:         end,
		Attendees:   attendees,
	}

	created, err := a.provider.CreateEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	// Confirmation goes to the first attendee. A mail failure fails the
	// action even though the event stays booked; callers see the error and
	// the calendar keeps the slot.
	mailData := map[string]any{
		"summary":     created.Summary,
		"start_time":  created.Start.Format(time.RFC3339),
		"end_time":    created.End.Format(time.RFC3339),
		"location":    created.Location,
		"description": created.Description,
	}
	if err := a.sender.SendTemplate(attendees[0].Email, mailer.TemplateAppointmentConfirmation, mailData); err != nil {
		return nil, fmt.Errorf("event %s booked but confirmation failed: %w", created.ID, err)
	}

	return map[string]any{"event": created}, nil
}

func (a *Agent) reschedule(ctx context.Context, data map[string]any) (any, error) {
	eventID, err := utils.GetStringField(data, "event_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionReschedule, "%v", err)
	}
	start, err := parseEventTime(data, "new_start_time")
	if err != nil {
		return nil, err
	}
	end, err := parseEventTime(data, "new_end_time")
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, agent.ValidationError(proto.ActionReschedule, "new_end_time must follow new_start_time")
	}

	updated, err := a.provider.UpdateEvent(ctx, eventID, &calendar.Event{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return map[string]any{"event": updated}, nil
}

func parseEventTime(data map[string]any, key string) (time.Time, error) {
	raw, err := utils.GetStringField(data, key)
	if err != nil {
		return time.Time{}, agent.ValidationError("scheduling", "%v", err)
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, agent.ValidationError("scheduling", "invalid %s %q (want RFC3339)", key, raw)
	}
	return at, nil
}

func parseAttendees(data map[string]any) ([]calendar.Attendee, error) {
	raw, ok := data["attendees"]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, agent.ValidationError(proto.ActionSchedule, "attendees must be a list")
	}

	attendees := make([]calendar.Attendee, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, agent.ValidationError(proto.ActionSchedule, "attendee entries must be objects")
		}
		email, err := utils.GetStringField(entry, "email")
		if err != nil {
			return nil, agent.ValidationError(proto.ActionSchedule, "attendee %v", err)
		}
		attendees = append(attendees, calendar.Attendee{Email: email})
	}
	return attendees, nil
}
