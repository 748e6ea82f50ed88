// Package proto defines the message envelope and shared enums exchanged
// between the HTTP layer, the controller, and the agents.
package proto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AgentState describes the lifecycle state of an agent.
// The state is diagnostic only: an agent in StateError still accepts the
// next message (no circuit-breaker semantics, deliberately).
type AgentState string

const (
	StateIdle    AgentState = "idle"
	StateWorking AgentState = "working"
	StateWaiting AgentState = "waiting"
	StateError   AgentState = "error"
)

// ValidateAgentState validates if a string is a valid agent state.
func ValidateAgentState(state string) (AgentState, bool) {
	switch AgentState(state) {
	case StateIdle, StateWorking, StateWaiting, StateError:
		return AgentState(state), true
	default:
		return "", false
	}
}

// ParseAgentState parses a string into an AgentState with validation.
func ParseAgentState(s string) (AgentState, error) {
	if state, ok := ValidateAgentState(strings.ToLower(s)); ok {
		return state, nil
	}
	return "", fmt.Errorf("unknown agent state: %s", s)
}

// String returns the string representation of AgentState.
func (s AgentState) String() string {
	return string(s)
}

// Well-known agent identifiers. These are the registration ids the controller
// wires at startup and the target ids the HTTP layer addresses.
const (
	AgentAnalytics              = "analytics"
	AgentScheduling             = "scheduling"
	AgentTransactionCoordinator = "transaction_coordinator"
	AgentLeadEngagement         = "lead_engagement"

	// SourceAPI marks messages originating from the HTTP layer.
	SourceAPI = "api"
)

// Metadata keys used in agent messages and replies.
const (
	KeyAction  = "action"
	KeyData    = "data"
	KeyStatus  = "status"
	KeyMessage = "message"
)

// Reply status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Action names accepted by the analytics agent.
const (
	ActionGenerateReport      = "generate_report"
	ActionCreateVisualization = "create_visualization"
	ActionGetMetrics          = "get_metrics"
)

// Action names accepted by the scheduling agent.
const (
	ActionFindSlots  = "find_slots"
	ActionSchedule   = "schedule"
	ActionReschedule = "reschedule"
)

// Action names accepted by the transaction coordinator agent.
const (
	ActionCreateTransaction = "create_transaction"
	ActionUpdateStatus      = "update_status"
	ActionGenerateDocument  = "generate_document"
	ActionCheckDeadlines    = "check_deadlines"
)

// Action names accepted by the lead engagement agent.
const (
	ActionCall                = "call"
	ActionSendEmail           = "send_email"
	ActionSendText            = "send_text"
	ActionScheduleAppointment = "schedule_appointment"
)

// AgentMessage is the envelope exchanged with agents. Content is free text
// for humans; routing reads only Metadata and TargetAgent. A message is
// immutable once constructed: handlers answer with a fresh reply envelope
// rather than mutating the request.
type AgentMessage struct {
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	SourceAgent string         `json:"source_agent"`
	TargetAgent string         `json:"target_agent,omitempty"`
}

// NewMessage builds a request envelope for the given action and argument bag.
func NewMessage(content, source, target, action string, data map[string]any) *AgentMessage {
	return &AgentMessage{
		Content: content,
		Metadata: map[string]any{
			KeyAction: action,
			KeyData:   data,
		},
		SourceAgent: source,
		TargetAgent: target,
	}
}

// NewSuccessReply builds a success reply envelope from the given agent.
func NewSuccessReply(sourceAgent string, data any) *AgentMessage {
	return &AgentMessage{
		Content: "Task completed",
		Metadata: map[string]any{
			KeyStatus: StatusSuccess,
			KeyData:   data,
		},
		SourceAgent: sourceAgent,
	}
}

// NewErrorReply builds an error reply envelope from the given agent.
func NewErrorReply(sourceAgent string, err error) *AgentMessage {
	return &AgentMessage{
		Content: "Error processing task",
		Metadata: map[string]any{
			KeyStatus:  StatusError,
			KeyMessage: err.Error(),
		},
		SourceAgent: sourceAgent,
	}
}

// Action returns the action metadata entry, or "" when absent.
func (m *AgentMessage) Action() string {
	if m.Metadata == nil {
		return ""
	}
	action, _ := m.Metadata[KeyAction].(string)
	return action
}

// Data returns the argument bag under the data metadata key. Always non-nil.
func (m *AgentMessage) Data() map[string]any {
	if m.Metadata == nil {
		return map[string]any{}
	}
	if data, ok := m.Metadata[KeyData].(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

// Status returns the reply status, or "" for request envelopes.
func (m *AgentMessage) Status() string {
	if m.Metadata == nil {
		return ""
	}
	status, _ := m.Metadata[KeyStatus].(string)
	return status
}

// IsError reports whether the message is an error reply.
func (m *AgentMessage) IsError() bool {
	return m.Status() == StatusError
}

// ErrorMessage returns the human-readable failure description of an error
// reply, or "" for success replies.
func (m *AgentMessage) ErrorMessage() string {
	if m.Metadata == nil {
		return ""
	}
	msg, _ := m.Metadata[KeyMessage].(string)
	return msg
}

// ReplyData returns the data payload of a success reply, or nil.
func (m *AgentMessage) ReplyData() any {
	if m.Metadata == nil {
		return nil
	}
	return m.Metadata[KeyData]
}

func (m *AgentMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FromJSON(data []byte) (*AgentMessage, error) {
	var msg AgentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal AgentMessage: %w", err)
	}
	return &msg, nil
}

// Clone returns a deep copy of the envelope. Handlers never need this on the
// happy path; the event log uses it to decouple from callers.
func (m *AgentMessage) Clone() *AgentMessage {
	clone := &AgentMessage{
		Content:     m.Content,
		SourceAgent: m.SourceAgent,
		TargetAgent: m.TargetAgent,
	}
	if m.Metadata != nil {
		clone.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Validate checks the envelope carries the fields routing depends on.
func (m *AgentMessage) Validate() error {
	if m.SourceAgent == "" {
		return fmt.Errorf("source_agent is required")
	}
	return nil
}
