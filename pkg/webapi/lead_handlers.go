package webapi

import (
	"errors"
	"net/http"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/utils"
)

type leadRequest struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Status    string         `json:"status"`
	Source    string         `json:"source"`
	Notes     string         `json:"notes"`
	Metadata  map[string]any `json:"metadata"`
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}
	if req.FirstName == "" {
		s.serviceError(w, agent.ValidationError("create_lead", "first_name is required"))
		return
	}
	if req.Status != "" && !persistence.IsValidLeadStatus(req.Status) {
		s.serviceError(w, agent.ValidationError("create_lead", "invalid status %q", req.Status))
		return
	}

	lead := &persistence.Lead{
		ID:        utils.NewID(),
		UserID:    requestUser(r).ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Status:    req.Status,
		Source:    req.Source,
		Notes:     req.Notes,
	}
	if len(req.Metadata) > 0 {
		encoded, err := encodeMetadata(req.Metadata)
		if err != nil {
			s.serviceError(w, err)
			return
		}
		lead.Metadata = encoded
	}

	if err := s.store.UpsertLead(lead); err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, lead)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	filter := &persistence.LeadFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("source"); v != "" {
		filter.Source = &v
	}
	if raw := r.URL.Query().Get("created_after"); raw != "" {
		after, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.serviceError(w, agent.ValidationError("list_leads", "invalid created_after %q", raw))
			return
		}
		filter.CreatedAfter = &after
	}

	leads, err := s.store.ListLeads(requestUser(r).ID, filter)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

type engageRequest struct {
	Content string         `json:"content"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data"`
}

// handleEngageLead hands an outreach task to the lead engagement agent.
// Callers may name an action directly or supply free-form content and let
// the agent infer one.
func (s *Server) handleEngageLead(w http.ResponseWriter, r *http.Request) {
	var req engageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}
	if req.Content == "" && req.Action == "" {
		s.serviceError(w, agent.ValidationError("engage_lead", "content or action is required"))
		return
	}

	data := make(map[string]any, len(req.Data)+2)
	for k, v := range req.Data {
		data[k] = v
	}
	data["lead_id"] = r.PathValue("id")
	data["user_id"] = requestUser(r).ID

	msg := proto.NewMessage(req.Content, proto.SourceAPI, proto.AgentLeadEngagement, req.Action, data)
	reply := s.controller.ProcessMessage(r.Context(), msg)
	if reply.IsError() {
		s.writeError(w, http.StatusBadRequest, errors.New(reply.ErrorMessage()))
		return
	}
	s.writeJSON(w, http.StatusOK, reply.ReplyData())
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := &persistence.TaskFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if raw := r.URL.Query().Get("due_before"); raw != "" {
		before, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.serviceError(w, agent.ValidationError("list_tasks", "invalid due_before %q", raw))
			return
		}
		filter.DueBefore = &before
	}

	tasks, err := s.store.ListTasks(requestUser(r).ID, filter)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(requestUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lead)
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	fields := make(map[string]any, len(req))
	for _, column := range []string{"first_name", "last_name", "email", "phone", "status", "source", "notes"} {
		if v, ok := req[column]; ok {
			fields[column] = v
		}
	}
	if len(fields) == 0 {
		s.serviceError(w, agent.ValidationError("update_lead", "no updatable fields in request"))
		return
	}
	if raw, ok := fields["status"]; ok {
		status, _ := raw.(string)
		if !persistence.IsValidLeadStatus(status) {
			s.serviceError(w, agent.ValidationError("update_lead", "invalid status %q", status))
			return
		}
	}

	lead, err := s.store.UpdateLead(requestUser(r).ID, r.PathValue("id"), fields)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lead)
}
