package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/proto"
)

// echoAgent answers "echo" tasks with its own tag.
type echoAgent struct {
	agentCtx *agent.Context
	tools    agent.ToolTable
	tag      string
}

func newEchoAgent(id, tag string) *echoAgent {
	a := &echoAgent{tag: tag}
	a.tools = agent.ToolTable{
		"echo": func(_ context.Context, data map[string]any) (any, error) {
			return map[string]any{"tag": a.tag, "payload": data["payload"]}, nil
		},
		"fail": func(_ context.Context, _ map[string]any) (any, error) {
			return nil, agent.ValidationError("fail", "always fails")
		},
	}
	a.agentCtx = agent.NewContext(id, "echo", a.tools.Actions(), nil)
	return a
}

func (a *echoAgent) Context() *agent.Context { return a.agentCtx }

func (a *echoAgent) HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	return agent.Run(ctx, a.agentCtx, a.tools, logx.NewLogger("echo"), msg)
}

func echoMessage(target string) *proto.AgentMessage {
	return proto.NewMessage("task", proto.SourceAPI, target, "echo", map[string]any{"payload": "hi"})
}

func TestProcessMessageRoutesToTarget(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))
	c.Attach(newEchoAgent("beta", "b"))

	reply := c.ProcessMessage(context.Background(), echoMessage("beta"))
	require.False(t, reply.IsError(), "unexpected error: %s", reply.ErrorMessage())

	data := reply.ReplyData().(map[string]any)
	assert.Equal(t, "b", data["tag"])
	assert.Equal(t, "beta", reply.SourceAgent)
}

func TestProcessMessageUnknownTarget(t *testing.T) {
	c := NewController(4, nil, nil)

	reply := c.ProcessMessage(context.Background(), echoMessage("ghost"))
	require.True(t, reply.IsError())
	assert.Contains(t, reply.ErrorMessage(), "no agent registered")
	assert.Contains(t, reply.ErrorMessage(), "ghost")
}

func TestAttachLastWins(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "old"))
	c.Attach(newEchoAgent("alpha", "new"))

	reply := c.ProcessMessage(context.Background(), echoMessage("alpha"))
	require.False(t, reply.IsError())
	assert.Equal(t, "new", reply.ReplyData().(map[string]any)["tag"])
}

func TestErrorStateNeverGatesDispatch(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))

	bad := proto.NewMessage("task", proto.SourceAPI, "alpha", "fail", nil)
	reply := c.ProcessMessage(context.Background(), bad)
	require.True(t, reply.IsError())

	agentCtx, ok := c.GetAgentContext("alpha")
	require.True(t, ok)
	assert.Equal(t, proto.StateError, agentCtx.State())

	// The agent in error state still accepts the next dispatch.
	reply = c.ProcessMessage(context.Background(), echoMessage("alpha"))
	require.False(t, reply.IsError())
	assert.Equal(t, proto.StateIdle, agentCtx.State())
}

func TestUpdateAgentState(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))

	c.UpdateAgentState("alpha", proto.StateWaiting)
	agentCtx, _ := c.GetAgentContext("alpha")
	assert.Equal(t, proto.StateWaiting, agentCtx.State())

	// Unknown IDs are a silent no-op.
	c.UpdateAgentState("ghost", proto.StateWaiting)
}

// Concurrent updates for one agent race without coordination; the last write
// wins. The final state must be one of the written values.
func TestUpdateAgentStateConcurrent(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))
	states := []proto.AgentState{proto.StateIdle, proto.StateWorking, proto.StateWaiting, proto.StateError}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(state proto.AgentState) {
			defer wg.Done()
			c.UpdateAgentState("alpha", state)
		}(states[i%len(states)])
	}
	wg.Wait()

	agentCtx, ok := c.GetAgentContext("alpha")
	require.True(t, ok)
	assert.Contains(t, states, agentCtx.State())
}

func TestDetach(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))
	c.Detach("alpha")

	_, ok := c.GetAgentContext("alpha")
	assert.False(t, ok)

	reply := c.ProcessMessage(context.Background(), echoMessage("alpha"))
	assert.True(t, reply.IsError())
}

func TestSendMessageDeliversReply(t *testing.T) {
	c := NewController(4, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		require.NoError(t, c.Stop(stopCtx))
	}()

	replyCh, err := c.SendMessage(echoMessage("alpha"))
	require.NoError(t, err)

	select {
	case reply := <-replyCh:
		require.False(t, reply.IsError())
		assert.Equal(t, "a", reply.ReplyData().(map[string]any)["tag"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued reply")
	}
}

func TestSendMessageQueueFull(t *testing.T) {
	// Worker not started, so the queue only fills.
	c := NewController(2, nil, nil)
	c.Attach(newEchoAgent("alpha", "a"))

	for i := 0; i < 2; i++ {
		_, err := c.SendMessage(echoMessage("alpha"))
		require.NoError(t, err, "enqueue %d", i)
	}

	_, err := c.SendMessage(echoMessage("alpha"))
	require.Error(t, err)
	assert.Equal(t, agent.ErrorTypeUnavailable, agent.TypeOf(err))
	assert.Contains(t, err.Error(), "queue full")
}

func TestStats(t *testing.T) {
	c := NewController(8, nil, nil)
	for i := 0; i < 3; i++ {
		c.Attach(newEchoAgent(fmt.Sprintf("agent-%d", i), "x"))
	}

	stats := c.Stats()
	assert.Len(t, stats["agents"], 3)
	assert.Equal(t, 0, stats["queue_depth"])
	assert.Equal(t, 8, stats["queue_capacity"])
}
