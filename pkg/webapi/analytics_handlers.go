package webapi

import (
	"net/http"
	"strconv"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/proto"
)

type reportRequest struct {
	DateRange int  `json:"date_range"`
	SendEmail bool `json:"send_email"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	user := requestUser(r)
	data := map[string]any{"user_id": user.ID}
	if req.DateRange > 0 {
		data["date_range"] = float64(req.DateRange)
	}
	if req.SendEmail {
		data["send_email"] = true
		data["user_email"] = user.Email
	}
	s.dispatchTask(w, r, proto.AgentAnalytics, proto.ActionGenerateReport, data)
}

func (s *Server) handleVisualization(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"user_id":  requestUser(r).ID,
		"viz_type": r.PathValue("type"),
	}
	if raw := r.URL.Query().Get("date_range"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			s.serviceError(w, agent.ValidationError("visualization", "invalid date_range %q", raw))
			return
		}
		data["date_range"] = float64(days)
	}
	s.dispatchTask(w, r, proto.AgentAnalytics, proto.ActionCreateVisualization, data)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"user_id": requestUser(r).ID}
	if metricType := r.URL.Query().Get("type"); metricType != "" {
		data["metric_type"] = metricType
	}
	if raw := r.URL.Query().Get("date_range"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			s.serviceError(w, agent.ValidationError("metrics", "invalid date_range %q", raw))
			return
		}
		data["date_range"] = float64(days)
	}
	s.dispatchTask(w, r, proto.AgentAnalytics, proto.ActionGetMetrics, data)
}
