package webapi

import (
	"net/http"

	"realtycrm/pkg/proto"
)

type availabilityRequest struct {
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	data := map[string]any{
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
	}
	if req.DurationMinutes > 0 {
		data["duration_minutes"] = float64(req.DurationMinutes)
	}
	s.dispatchTask(w, r, proto.AgentScheduling, proto.ActionFindSlots, data)
}

type appointmentRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Attendees   []struct {
		Email string `json:"email"`
	} `json:"attendees"`
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	attendees := make([]any, 0, len(req.Attendees))
	for _, attendee := range req.Attendees {
		attendees = append(attendees, map[string]any{"email": attendee.Email})
	}

	data := map[string]any{
		"summary":    req.Summary,
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
		"attendees":  attendees,
	}
	if req.Description != "" {
		data["description"] = req.Description
	}
	if req.Location != "" {
		data["location"] = req.Location
	}
	s.dispatchTask(w, r, proto.AgentScheduling, proto.ActionSchedule, data)
}

type rescheduleRequest struct {
	NewStartTime string `json:"new_start_time"`
	NewEndTime   string `json:"new_end_time"`
}

func (s *Server) handleRescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	data := map[string]any{
		"event_id":       r.PathValue("id"),
		"new_start_time": req.NewStartTime,
		"new_end_time":   req.NewEndTime,
	}
	s.dispatchTask(w, r, proto.AgentScheduling, proto.ActionReschedule, data)
}
