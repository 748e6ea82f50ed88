package agent

import (
	"sync"

	"realtycrm/pkg/proto"
)

// Context carries the runtime identity of a registered agent: its id, its
// type, its advertised tools and capabilities, and a mutable state plus
// scratch memory. State and memory are guarded by a mutex because HTTP
// handlers and the queue drain worker touch them concurrently; readers get
// the most recent write, nothing more.
type Context struct {
	mu           sync.Mutex
	agentID      string
	agentType    string
	state        proto.AgentState
	memory       map[string]any
	tools        []string
	capabilities []string
}

// NewContext creates a Context in the idle state.
func NewContext(agentID, agentType string, tools, capabilities []string) *Context {
	return &Context{
		agentID:      agentID,
		agentType:    agentType,
		state:        proto.StateIdle,
		memory:       make(map[string]any),
		tools:        append([]string(nil), tools...),
		capabilities: append([]string(nil), capabilities...),
	}
}

// ID returns the agent identifier.
func (c *Context) ID() string {
	return c.agentID
}

// Type returns the agent type label.
func (c *Context) Type() string {
	return c.agentType
}

// State returns the current agent state.
func (c *Context) State() proto.AgentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState records a new agent state. The value is diagnostic, so any
// state may follow any other; last write wins.
func (c *Context) SetState(state proto.AgentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Remember stores a value in the agent's scratch memory.
func (c *Context) Remember(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory[key] = value
}

// Recall retrieves a value from scratch memory.
func (c *Context) Recall(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.memory[key]
	return value, ok
}

// Tools returns the action names the agent dispatches on.
func (c *Context) Tools() []string {
	return append([]string(nil), c.tools...)
}

// Capabilities returns the capability labels the agent advertises.
func (c *Context) Capabilities() []string {
	return append([]string(nil), c.capabilities...)
}
