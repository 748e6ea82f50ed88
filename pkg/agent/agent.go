// Package agent defines the runtime contract shared by all task agents:
// the per-agent Context, the tool table that actions dispatch through, and
// the Run loop that turns a task message into a success or error reply.
package agent

import (
	"context"
	"fmt"

	"realtycrm/pkg/logx"
	"realtycrm/pkg/proto"
)

// ToolFunc executes one action against the task payload and returns the
// reply data.
type ToolFunc func(ctx context.Context, data map[string]any) (any, error)

// ToolTable maps action names to their implementations. The table is the
// single source of truth for what an agent can do: the advertised tool
// list and the dispatch switch are both derived from it.
type ToolTable map[string]ToolFunc

// Actions returns the action names in the table, for Context tool
// advertisement. Order is unspecified.
func (t ToolTable) Actions() []string {
	actions := make([]string, 0, len(t))
	for name := range t {
		actions = append(actions, name)
	}
	return actions
}

// Agent is a registered task handler.
type Agent interface {
	// Context returns the agent's runtime context.
	Context() *Context
	// HandleTask processes one task message and returns a reply. The reply
	// is never nil and carries either a success or an error status.
	HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage
}

// Run executes the action named in msg against the tool table, managing the
// agent's state around the call: working while the tool runs, idle on
// success, error on failure. Every outcome produces a reply addressed back
// to the message source.
func Run(ctx context.Context, agentCtx *Context, tools ToolTable, logger *logx.Logger, msg *proto.AgentMessage) *proto.AgentMessage {
	agentCtx.SetState(proto.StateWorking)

	action := msg.Action()
	tool, ok := tools[action]
	if !ok {
		agentCtx.SetState(proto.StateError)
		err := Errorf(ErrorTypeValidation, agentCtx.ID(), "%v: %q", ErrUnknownAction, action)
		logger.Warn("%v", err)
		return proto.NewErrorReply(agentCtx.ID(), err)
	}

	logger.Debug("running %s for %s", action, msg.SourceAgent)
	result, err := tool(ctx, msg.Data())
	if err != nil {
		agentCtx.SetState(proto.StateError)
		wrapped := fmt.Errorf("%s: %w", action, err)
		logger.Error("%s failed: %v", action, err)
		return proto.NewErrorReply(agentCtx.ID(), wrapped)
	}

	agentCtx.SetState(proto.StateIdle)
	return proto.NewSuccessReply(agentCtx.ID(), result)
}
