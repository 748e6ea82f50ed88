// Package testkit provides in-memory stand-ins for the external services
// the agents talk to: a calendar backend, a signature backend, and a mail
// relay.
package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"realtycrm/pkg/calendar"
	"realtycrm/pkg/esign"
)

// MockCalendarServer emulates the calendar backend with in-memory events.
type MockCalendarServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	events   map[string]*calendar.Event
	nextID   int
	failNext bool
}

// NewMockCalendarServer starts a mock calendar backend. Callers own the
// shutdown via Close.
func NewMockCalendarServer() *MockCalendarServer {
	mock := &MockCalendarServer{events: make(map[string]*calendar.Event), nextID: 1}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// Close shuts the server down.
func (m *MockCalendarServer) Close() {
	m.Server.Close()
}

// URL returns the backend base URL.
func (m *MockCalendarServer) URL() string {
	return m.Server.URL
}

// FailNextRequest makes the next request answer 503.
func (m *MockCalendarServer) FailNextRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// SeedEvent installs a busy interval directly.
func (m *MockCalendarServer) SeedEvent(event calendar.Event) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("evt-%d", m.nextID)
	m.nextID++
	event.ID = id
	m.events[id] = &event
	return id
}

// Events returns a snapshot of the stored events.
func (m *MockCalendarServer) Events() []calendar.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]calendar.Event, 0, len(m.events))
	for _, event := range m.events {
		events = append(events, *event)
	}
	return events
}

func (m *MockCalendarServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		http.Error(w, "backend down", http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// calendars/{id}/events[/{eventID}]
	if len(parts) < 3 || parts[0] != "calendars" || parts[2] != "events" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodPost:
		var event calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		event.ID = fmt.Sprintf("evt-%d", m.nextID)
		m.nextID++
		event.Status = "confirmed"
		m.events[event.ID] = &event
		writeJSON(w, event)

	case len(parts) == 3 && r.Method == http.MethodGet:
		from, _ := time.Parse(time.RFC3339, r.URL.Query().Get("time_min"))
		to, _ := time.Parse(time.RFC3339, r.URL.Query().Get("time_max"))
		items := []calendar.Event{}
		for _, event := range m.events {
			if to.IsZero() || (event.Start.Before(to) && event.End.After(from)) {
				items = append(items, *event)
			}
		}
		writeJSON(w, map[string]any{"items": items})

	case len(parts) == 4 && r.Method == http.MethodPatch:
		existing, ok := m.events[parts[3]]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var patch calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if !patch.Start.IsZero() {
			existing.Start = patch.Start
		}
		if !patch.End.IsZero() {
			existing.End = patch.End
		}
		if patch.Summary != "" {
			existing.Summary = patch.Summary
		}
		writeJSON(w, existing)

	case len(parts) == 4 && r.Method == http.MethodDelete:
		if _, ok := m.events[parts[3]]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(m.events, parts[3])
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// MockESignServer emulates the signature backend with in-memory envelopes.
type MockESignServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	envelopes map[string]*esign.Envelope
	requests  map[string]*esign.EnvelopeRequest
	nextID    int
	failNext  bool
}

// NewMockESignServer starts a mock signature backend.
func NewMockESignServer() *MockESignServer {
	mock := &MockESignServer{
		envelopes: make(map[string]*esign.Envelope),
		requests:  make(map[string]*esign.EnvelopeRequest),
		nextID:    1,
	}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// Close shuts the server down.
func (m *MockESignServer) Close() {
	m.Server.Close()
}

// URL returns the backend base URL.
func (m *MockESignServer) URL() string {
	return m.Server.URL
}

// FailNextRequest makes the next request answer 503.
func (m *MockESignServer) FailNextRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

// SetEnvelopeStatus overrides a stored envelope's provider status.
func (m *MockESignServer) SetEnvelopeStatus(envelopeID, providerStatus string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if envelope, ok := m.envelopes[envelopeID]; ok {
		envelope.Status = providerStatus
	}
}

// EnvelopeRequest returns the request that created the given envelope.
func (m *MockESignServer) EnvelopeRequest(envelopeID string) *esign.EnvelopeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[envelopeID]
}

func (m *MockESignServer) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		http.Error(w, "backend down", http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// accounts/{id}/envelopes[/{envelopeID}[/void|/views]]
	if len(parts) < 3 || parts[0] != "accounts" || parts[2] != "envelopes" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 3 && r.Method == http.MethodPost:
		var req esign.EnvelopeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		id := fmt.Sprintf("env-%d", m.nextID)
		m.nextID++
		envelope := &esign.Envelope{ID: id, Status: "sent"}
		m.envelopes[id] = envelope
		m.requests[id] = &req
		writeJSON(w, envelope)

	case len(parts) == 4 && r.Method == http.MethodGet:
		envelope, ok := m.envelopes[parts[3]]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, envelope)

	case len(parts) == 5 && parts[4] == "void" && r.Method == http.MethodPost:
		envelope, ok := m.envelopes[parts[3]]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		envelope.Status = "voided"
		w.WriteHeader(http.StatusOK)

	case len(parts) == 5 && parts[4] == "views" && r.Method == http.MethodPost:
		if _, ok := m.envelopes[parts[3]]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{
			"url": m.Server.URL + "/sign/" + parts[3],
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
