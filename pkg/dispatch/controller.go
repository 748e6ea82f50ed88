// Package dispatch implements the message controller: a registry of live
// agents, the synchronous dispatch path used by the HTTP layer, and a
// buffered work queue for deferred tasks.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/eventlog"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/metrics"
	"realtycrm/pkg/proto"
)

// DefaultQueueSize bounds the deferred-task queue when the config names none.
const DefaultQueueSize = 256

// pending pairs a queued message with the channel its reply goes to.
type pending struct {
	msg     *proto.AgentMessage
	replyCh chan *proto.AgentMessage
}

// Controller owns the agent registry. It is the single authority for
// resolving a message's TargetAgent to a live agent.
type Controller struct {
	mu      sync.RWMutex
	agents  map[string]agent.Agent
	queue   chan pending
	logger  *logx.Logger
	metrics *metrics.Recorder
	events  *eventlog.Writer

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
	running  bool
}

// NewController creates a controller with a queue of the given size.
// recorder and events may be nil; the corresponding hooks become no-ops.
func NewController(queueSize int, recorder *metrics.Recorder, events *eventlog.Writer) *Controller {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Controller{
		agents:  make(map[string]agent.Agent),
		queue:   make(chan pending, queueSize),
		logger:  logx.NewLogger("dispatch"),
		metrics: recorder,
		events:  events,
		stopCh:  make(chan struct{}),
	}
}

// Attach registers an agent by its context ID. Attaching an agent with an
// ID already in the registry replaces the earlier one.
func (c *Controller) Attach(ag agent.Agent) {
	id := ag.Context().ID()
	c.mu.Lock()
	if _, ok := c.agents[id]; ok {
		c.logger.Warn("replacing agent %s in registry", id)
	}
	c.agents[id] = ag
	c.mu.Unlock()
	c.logger.Info("attached agent %s (%s)", id, ag.Context().Type())
}

// Detach removes an agent from the registry. Unknown IDs are a no-op.
func (c *Controller) Detach(agentID string) {
	c.mu.Lock()
	delete(c.agents, agentID)
	c.mu.Unlock()
}

// GetAgentContext returns the live context for an agent ID.
func (c *Controller) GetAgentContext(agentID string) (*agent.Context, bool) {
	c.mu.RLock()
	ag, ok := c.agents[agentID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ag.Context(), true
}

// UpdateAgentState sets an agent's diagnostic state. Unknown IDs are a
// no-op. State never gates dispatch.
func (c *Controller) UpdateAgentState(agentID string, state proto.AgentState) {
	if agentCtx, ok := c.GetAgentContext(agentID); ok {
		agentCtx.SetState(state)
	}
}

// ProcessMessage routes one message to its target agent and returns the
// reply. This is the synchronous path the HTTP layer calls; the queue
// worker funnels through it too.
func (c *Controller) ProcessMessage(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	if err := msg.Validate(); err != nil {
		return proto.NewErrorReply("dispatch",
			agent.NewError(agent.ErrorTypeValidation, "dispatch", err))
	}
	c.logMessage(eventlog.DirectionRequest, msg)

	c.mu.RLock()
	ag, ok := c.agents[msg.TargetAgent]
	c.mu.RUnlock()
	if !ok {
		c.observe(msg.TargetAgent, msg.Action(), "error", 0)
		reply := proto.NewErrorReply("dispatch",
			agent.NewError(agent.ErrorTypeNotFound, "dispatch",
				fmt.Errorf("no agent registered for target %q", msg.TargetAgent)))
		c.logMessage(eventlog.DirectionReply, reply)
		return reply
	}

	began := time.Now()
	reply := ag.HandleTask(ctx, msg)
	status := "success"
	if reply.IsError() {
		status = "error"
	}
	c.observe(msg.TargetAgent, msg.Action(), status, time.Since(began))
	c.logMessage(eventlog.DirectionReply, reply)
	return reply
}

// SendMessage enqueues a message for the drain worker and returns the
// channel its reply will arrive on. A full queue rejects the message.
func (c *Controller) SendMessage(msg *proto.AgentMessage) (<-chan *proto.AgentMessage, error) {
	replyCh := make(chan *proto.AgentMessage, 1)
	select {
	case c.queue <- pending{msg: msg, replyCh: replyCh}:
		c.setQueueDepth()
		return replyCh, nil
	default:
		if c.metrics != nil {
			c.metrics.IncQueueDrop()
		}
		return nil, agent.NewError(agent.ErrorTypeUnavailable, "dispatch",
			fmt.Errorf("queue full (%d pending)", cap(c.queue)))
	}
}

// Start launches the queue drain worker. Safe to call once.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.drainQueue(ctx)
	c.logger.Info("controller started (queue capacity %d)", cap(c.queue))
}

// Stop shuts the worker down and waits for in-flight work, honoring the
// context deadline.
func (c *Controller) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("controller stop: %w", ctx.Err())
	}
}

func (c *Controller) drainQueue(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case item := <-c.queue:
			c.setQueueDepth()
			reply := c.ProcessMessage(ctx, item.msg)
			item.replyCh <- reply
			close(item.replyCh)
		}
	}
}

// Stats reports registry and queue occupancy for diagnostics.
func (c *Controller) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agents := make([]map[string]any, 0, len(c.agents))
	for id, ag := range c.agents {
		agentCtx := ag.Context()
		agents = append(agents, map[string]any{
			"id":    id,
			"type":  agentCtx.Type(),
			"state": string(agentCtx.State()),
			"tools": agentCtx.Tools(),
		})
	}
	return map[string]any{
		"agents":         agents,
		"queue_depth":    len(c.queue),
		"queue_capacity": cap(c.queue),
	}
}

func (c *Controller) observe(agentID, action, status string, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveDispatch(agentID, action, status, duration)
	}
}

func (c *Controller) setQueueDepth() {
	if c.metrics != nil {
		c.metrics.SetQueueDepth(len(c.queue))
	}
}

func (c *Controller) logMessage(direction string, msg *proto.AgentMessage) {
	if c.events == nil {
		return
	}
	if err := c.events.WriteMessage(direction, msg); err != nil {
		c.logger.Warn("event log write failed: %v", err)
	}
}
