// Package lead implements the lead engagement agent: outreach by phone,
// email, and text, plus appointment hand-off.
package lead

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/utils"
)

// Agent answers lead engagement tasks.
type Agent struct {
	agentCtx *agent.Context
	store    *persistence.Store
	sender   mailer.Sender
	tools    agent.ToolTable
	logger   *logx.Logger
}

// New creates the lead engagement agent.
func New(store *persistence.Store, sender mailer.Sender) *Agent {
	a := &Agent{
		store:  store,
		sender: sender,
		logger: logx.NewLogger(proto.AgentLeadEngagement),
	}
	a.tools = agent.ToolTable{
		proto.ActionCall:                a.call,
		proto.ActionSendEmail:           a.sendEmail,
		proto.ActionSendText:            a.sendText,
		proto.ActionScheduleAppointment: a.scheduleAppointment,
	}
	a.agentCtx = agent.NewContext(proto.AgentLeadEngagement, "lead_engagement",
		a.tools.Actions(), []string{"outreach", "follow_up"})
	return a
}

// Context returns the agent's runtime context.
func (a *Agent) Context() *agent.Context {
	return a.agentCtx
}

// HandleTask dispatches one engagement task. Messages without an explicit
// action are routed by scanning the content for a known verb.
func (a *Agent) HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	if msg.Action() == "" {
		if action := inferAction(msg.Content); action != "" {
			msg = msg.Clone()
			if msg.Metadata == nil {
				msg.Metadata = make(map[string]any)
			}
			msg.Metadata[proto.KeyAction] = action
		}
	}
	return agent.Run(ctx, a.agentCtx, a.tools, a.logger, msg)
}

// inferAction maps free-form task content to a tool action. First match in
// priority order wins.
func inferAction(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "appointment"), strings.Contains(lower, "showing"):
		return proto.ActionScheduleAppointment
	case strings.Contains(lower, "call"), strings.Contains(lower, "phone"):
		return proto.ActionCall
	case strings.Contains(lower, "text"), strings.Contains(lower, "sms"):
		return proto.ActionSendText
	case strings.Contains(lower, "email"):
		return proto.ActionSendEmail
	}
	return ""
}

func (a *Agent) call(_ context.Context, data map[string]any) (any, error) {
	phone, err := utils.GetStringField(data, "phone")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCall, "%v", err)
	}

	result := map[string]any{
		"channel":   "phone",
		"phone":     phone,
		"placed_at": time.Now().UTC().Format(time.RFC3339),
		"outcome":   "call placed",
	}
	if script := utils.GetMapFieldOr(data, "script", ""); script != "" {
		result["script"] = script
	}

	if err := a.touchLead(data, persistence.LeadStatusContacted); err != nil {
		return nil, err
	}
	a.logger.Info("placed call to %s", phone)
	return result, nil
}

func (a *Agent) sendEmail(_ context.Context, data map[string]any) (any, error) {
	email, err := utils.GetStringField(data, "email")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionSendEmail, "%v", err)
	}

	template := utils.GetMapFieldOr(data, "template", mailer.TemplateNewLead)
	mailData, err := utils.GetStringMapField(data, "template_data")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionSendEmail, "%v", err)
	}
	if _, ok := mailData["lead_name"]; !ok {
		mailData["lead_name"] = utils.GetMapFieldOr(data, "lead_name", "there")
	}
	if err := a.sender.SendTemplate(email, template, mailData); err != nil {
		return nil, err
	}

	if err := a.touchLead(data, persistence.LeadStatusContacted); err != nil {
		return nil, err
	}
	a.logger.Info("sent %s email to %s", template, email)
	return map[string]any{"channel": "email", "email": email, "template": template}, nil
}

func (a *Agent) sendText(_ context.Context, data map[string]any) (any, error) {
	phone, err := utils.GetStringField(data, "phone")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionSendText, "%v", err)
	}
	body, err := utils.GetStringField(data, "body")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionSendText, "%v", err)
	}

	if err := a.touchLead(data, persistence.LeadStatusContacted); err != nil {
		return nil, err
	}
	a.logger.Info("sent text to %s (%d chars)", phone, len(body))
	return map[string]any{
		"channel": "sms",
		"phone":   phone,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (a *Agent) scheduleAppointment(_ context.Context, data map[string]any) (any, error) {
	request := map[string]any{
		"requested": true,
		"forward_to": map[string]any{
			"agent":  proto.AgentScheduling,
			"action": proto.ActionSchedule,
		},
	}
	for _, key := range []string{"summary", "start_time", "end_time", "location", "attendees"} {
		if v, ok := data[key]; ok {
			request[key] = v
		}
	}

	if err := a.touchLead(data, persistence.LeadStatusQualified); err != nil {
		return nil, err
	}
	if taskID, err := a.recordFollowUp(data); err != nil {
		return nil, err
	} else if taskID != "" {
		request["task_id"] = taskID
	}
	return request, nil
}

// recordFollowUp files an open task against the lead so the appointment
// request survives even if the scheduling hand-off is never completed.
func (a *Agent) recordFollowUp(data map[string]any) (string, error) {
	leadID := utils.GetMapFieldOr(data, "lead_id", "")
	userID := utils.GetMapFieldOr(data, "user_id", "")
	if leadID == "" || userID == "" {
		return "", nil
	}

	task := &persistence.Task{
		ID:     utils.NewID(),
		UserID: userID,
		LeadID: leadID,
		Title:  utils.GetMapFieldOr(data, "summary", "Appointment follow-up"),
		Status: persistence.TaskStatusOpen,
	}
	if start := utils.GetMapFieldOr(data, "start_time", ""); start != "" {
		if due, err := time.Parse(time.RFC3339, start); err == nil {
			task.DueDate = &due
		}
	}
	if err := a.store.UpsertTask(task); err != nil {
		return "", err
	}
	a.logger.Debug("filed follow-up task %s for lead %s", task.ID, leadID)
	return task.ID, nil
}

// touchLead records contact on the originating lead when the task names one.
// Missing lead_id is fine; a named lead that does not exist is an error.
func (a *Agent) touchLead(data map[string]any, status string) error {
	leadID := utils.GetMapFieldOr(data, "lead_id", "")
	if leadID == "" {
		return nil
	}
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return agent.ValidationError("touch_lead", "lead_id given but %v", err)
	}

	lead, err := a.store.GetLead(userID, leadID)
	if err != nil {
		if err == persistence.ErrNotFound {
			return agent.NewError(agent.ErrorTypeNotFound, "touch_lead",
				fmt.Errorf("lead %s not found", leadID))
		}
		return err
	}

	fields := map[string]any{"last_contacted": time.Now().UTC()}
	// Only move the status forward from "new"; never demote a warmer lead.
	if lead.Status == persistence.LeadStatusNew {
		fields["status"] = status
	}
	if _, err := a.store.UpdateLead(userID, leadID, fields); err != nil {
		return err
	}
	return nil
}
