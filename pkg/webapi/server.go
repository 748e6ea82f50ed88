// Package webapi exposes the CRM over REST: auth, lead and transaction
// CRUD, and the agent-backed scheduling and analytics endpoints.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/dispatch"
	"realtycrm/pkg/identity"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/metrics"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/version"
)

type contextKey string

const userContextKey contextKey = "webapi.user"

// Server is the REST front end. All agent-backed endpoints funnel through
// the controller's ProcessMessage path, one dispatch per request.
type Server struct {
	store      *persistence.Store
	identity   *identity.Service
	controller *dispatch.Controller
	metrics    *metrics.Recorder
	logger     *logx.Logger
}

// NewServer creates the REST server. recorder may be nil.
func NewServer(store *persistence.Store, identitySvc *identity.Service, controller *dispatch.Controller, recorder *metrics.Recorder) *Server {
	return &Server{
		store:      store,
		identity:   identitySvc,
		controller: controller,
		metrics:    recorder,
		logger:     logx.NewLogger("webapi"),
	}
}

// RegisterRoutes wires every endpoint onto the mux. Auth endpoints,
// /healthz, and /metrics are open; everything else requires a bearer token.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", s.instrument("/auth/signup", s.handleSignup))
	mux.HandleFunc("POST /auth/token", s.instrument("/auth/token", s.handleToken))
	mux.HandleFunc("GET /auth/me", s.protected("/auth/me", s.handleMe))

	mux.HandleFunc("POST /leads", s.protected("/leads", s.handleCreateLead))
	mux.HandleFunc("GET /leads", s.protected("/leads", s.handleListLeads))
	mux.HandleFunc("GET /leads/{id}", s.protected("/leads/{id}", s.handleGetLead))
	mux.HandleFunc("PUT /leads/{id}", s.protected("/leads/{id}", s.handleUpdateLead))
	mux.HandleFunc("POST /leads/{id}/engage", s.protected("/leads/{id}/engage", s.handleEngageLead))
	mux.HandleFunc("GET /tasks", s.protected("/tasks", s.handleListTasks))

	mux.HandleFunc("POST /transactions", s.protected("/transactions", s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions", s.protected("/transactions", s.handleListTransactions))
	mux.HandleFunc("GET /transactions/{id}", s.protected("/transactions/{id}", s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.protected("/transactions/{id}", s.handleUpdateTransaction))
	mux.HandleFunc("POST /transactions/{id}/documents", s.protected("/transactions/{id}/documents", s.handleGenerateDocument))
	mux.HandleFunc("GET /transactions/{id}/documents", s.protected("/transactions/{id}/documents", s.handleListDocuments))
	mux.HandleFunc("GET /transactions/{id}/deadlines", s.protected("/transactions/{id}/deadlines", s.handleCheckDeadlines))

	mux.HandleFunc("POST /scheduling/availability", s.protected("/scheduling/availability", s.handleAvailability))
	mux.HandleFunc("POST /scheduling/appointments", s.protected("/scheduling/appointments", s.handleCreateAppointment))
	mux.HandleFunc("PUT /scheduling/appointments/{id}", s.protected("/scheduling/appointments/{id}", s.handleRescheduleAppointment))

	mux.HandleFunc("POST /analytics/report", s.protected("/analytics/report", s.handleReport))
	mux.HandleFunc("POST /analytics/visualizations/{type}", s.protected("/analytics/visualizations/{type}", s.handleVisualization))
	mux.HandleFunc("GET /analytics/metrics", s.protected("/analytics/metrics", s.handleMetrics))

	mux.HandleFunc("GET /agents", s.protected("/agents", s.handleAgents))
	mux.HandleFunc("GET /healthz", s.instrument("/healthz", s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())
}

// instrument records request count and latency for a route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		if s.metrics != nil {
			s.metrics.ObserveHTTPRequest(r.Method, route, strconv.Itoa(sw.status), time.Since(began))
		}
	}
}

// protected wraps a handler with bearer-token auth and instrumentation.
func (s *Server) protected(route string, next http.HandlerFunc) http.HandlerFunc {
	return s.instrument(route, func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) authenticate(r *http.Request) (*persistence.User, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return nil, fmt.Errorf("missing bearer token")
	}
	user, err := s.identity.ValidateToken(header[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("invalid token")
	}
	return user, nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// dispatchTask sends one task through the controller and writes the reply.
// Agent error replies always map to 400: the agent classified the failure
// and the envelope carries only its message.
func (s *Server) dispatchTask(w http.ResponseWriter, r *http.Request, target, action string, data map[string]any) {
	msg := proto.NewMessage("api task", proto.SourceAPI, target, action, data)
	reply := s.controller.ProcessMessage(r.Context(), msg)
	if reply.IsError() {
		s.writeError(w, http.StatusBadRequest, errors.New(reply.ErrorMessage()))
		return
	}
	s.writeJSON(w, http.StatusOK, reply.ReplyData())
}

// statusForError maps classified error kinds to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrEmailTaken):
		return http.StatusBadRequest
	}
	switch agent.TypeOf(err) {
	case agent.ErrorTypeValidation, agent.ErrorTypeUnavailable, agent.ErrorTypeRejected:
		return http.StatusBadRequest
	case agent.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// serviceError classifies and writes a non-handler error.
func (s *Server) serviceError(w http.ResponseWriter, err error) {
	s.writeError(w, statusForError(err), err)
}

func encodeMetadata(meta map[string]any) (string, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", agent.Errorf(agent.ErrorTypeValidation, "metadata", "invalid metadata: %v", err)
	}
	return string(raw), nil
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return agent.Errorf(agent.ErrorTypeValidation, "decode", "invalid request body: %v", err)
	}
	return nil
}

func withUser(ctx context.Context, user *persistence.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func requestUser(r *http.Request) *persistence.User {
	user, _ := r.Context().Value(userContextKey).(*persistence.User)
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.controller.Stats())
}
