package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := NewMessage("book a showing", SourceAPI, AgentScheduling, ActionSchedule,
		map[string]any{"summary": "12 Elm St"})

	raw, err := msg.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, decoded.SourceAgent)
	assert.Equal(t, AgentScheduling, decoded.TargetAgent)
	assert.Equal(t, ActionSchedule, decoded.Action())
	assert.Equal(t, "12 Elm St", decoded.Data()["summary"])
}

func TestSuccessReply(t *testing.T) {
	reply := NewSuccessReply(AgentAnalytics, map[string]any{"count": 3})

	assert.False(t, reply.IsError())
	assert.Equal(t, StatusSuccess, reply.Status())
	assert.Equal(t, AgentAnalytics, reply.SourceAgent)
	data, ok := reply.ReplyData().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, data["count"])
}

func TestErrorReply(t *testing.T) {
	reply := NewErrorReply(AgentScheduling, errors.New("calendar unavailable"))

	assert.True(t, reply.IsError())
	assert.Equal(t, StatusError, reply.Status())
	assert.Equal(t, "calendar unavailable", reply.ErrorMessage())
}

func TestCloneIsolation(t *testing.T) {
	msg := NewMessage("task", SourceAPI, AgentAnalytics, ActionGetMetrics, nil)
	clone := msg.Clone()
	clone.Metadata[KeyAction] = ActionGenerateReport

	assert.Equal(t, ActionGetMetrics, msg.Action())
	assert.Equal(t, ActionGenerateReport, clone.Action())
}

func TestDataAlwaysNonNil(t *testing.T) {
	msg := NewMessage("task", SourceAPI, AgentAnalytics, ActionGetMetrics, nil)
	require.NotNil(t, msg.Data())
}

func TestValidate(t *testing.T) {
	msg := NewMessage("task", SourceAPI, AgentAnalytics, ActionGetMetrics, nil)
	require.NoError(t, msg.Validate())

	msg.SourceAgent = ""
	require.Error(t, msg.Validate())
}

func TestParseAgentState(t *testing.T) {
	for _, state := range []AgentState{StateIdle, StateWorking, StateWaiting, StateError} {
		parsed, err := ParseAgentState(string(state))
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}
	_, err := ParseAgentState("asleep")
	require.Error(t, err)
}
