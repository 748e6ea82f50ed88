// Package analytics implements the analytics agent: performance reports,
// metric bundles, and visualization payloads.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/reporting"
	"realtycrm/pkg/utils"
)

// Agent answers analytics tasks.
type Agent struct {
	agentCtx *agent.Context
	reports  *reporting.Service
	sender   mailer.Sender
	tools    agent.ToolTable
	logger   *logx.Logger
}

// New creates the analytics agent.
func New(reports *reporting.Service, sender mailer.Sender) *Agent {
	a := &Agent{
		reports: reports,
		sender:  sender,
		logger:  logx.NewLogger(proto.AgentAnalytics),
	}
	a.tools = agent.ToolTable{
		proto.ActionGenerateReport:      a.generateReport,
		proto.ActionCreateVisualization: a.createVisualization,
		proto.ActionGetMetrics:          a.getMetrics,
	}
	a.agentCtx = agent.NewContext(proto.AgentAnalytics, "analytics", a.tools.Actions(),
		[]string{"reporting", "visualization", "insights"})
	return a
}

// Context returns the agent's runtime context.
func (a *Agent) Context() *agent.Context {
	return a.agentCtx
}

// HandleTask dispatches one analytics task.
func (a *Agent) HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	return agent.Run(ctx, a.agentCtx, a.tools, a.logger, msg)
}

func (a *Agent) generateReport(_ context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionGenerateReport, "%v", err)
	}
	dateRange := int(utils.GetMapFieldOr(data, "date_range", float64(reporting.DefaultDateRangeDays)))

	report, err := a.reports.GenerateReport(userID, dateRange)
	if err != nil {
		return nil, err
	}

	leadViz, err := a.reports.CreateVisualization(reporting.VizLeadsOverTime, &report.Leads, nil)
	if err != nil {
		return nil, err
	}
	txViz, err := a.reports.CreateVisualization(reporting.VizTransactionsByStatus, nil, &report.Transactions)
	if err != nil {
		return nil, err
	}

	if utils.GetMapFieldOr(data, "send_email", false) {
		userEmail, err := utils.GetStringField(data, "user_email")
		if err != nil {
			return nil, agent.ValidationError(proto.ActionGenerateReport, "send_email requested: %v", err)
		}
		mailData := map[string]any{
			"date_range":         report.PeriodDays,
			"total_leads":        report.Leads.TotalLeads,
			"converted_leads":    report.Leads.ConvertedLeads,
			"conversion_rate":    fmt.Sprintf("%.1f", report.ConversionRate),
			"total_transactions": report.Transactions.TotalTransactions,
		}
		if err := a.sender.SendTemplate(userEmail, mailer.TemplateAnalyticsReport, mailData); err != nil {
			return nil, fmt.Errorf("failed to mail report: %w", err)
		}
	}

	return map[string]any{
		"report":         report,
		"visualizations": []map[string]any{leadViz, txViz},
		"analysis":       report.Insights,
	}, nil
}

// createVisualization charts a caller-supplied metrics bundle under "data";
// without one it recomputes the user's metrics from the store.
func (a *Agent) createVisualization(_ context.Context, data map[string]any) (any, error) {
	vizType, err := utils.GetStringField(data, "viz_type")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCreateVisualization, "%v", err)
	}

	leadMetrics, txMetrics, err := a.vizMetrics(data)
	if err != nil {
		return nil, err
	}

	viz, err := a.reports.CreateVisualization(vizType, leadMetrics, txMetrics)
	if err != nil {
		return nil, err
	}
	return map[string]any{"visualization": viz}, nil
}

func (a *Agent) vizMetrics(data map[string]any) (*reporting.LeadMetrics, *reporting.TransactionMetrics, error) {
	bundle, err := utils.GetStringMapField(data, "data")
	if err != nil {
		return nil, nil, agent.ValidationError(proto.ActionCreateVisualization, "%v", err)
	}
	if len(bundle) > 0 {
		raw, err := json.Marshal(bundle)
		if err != nil {
			return nil, nil, agent.ValidationError(proto.ActionCreateVisualization, "bad metrics data: %v", err)
		}
		leadMetrics := &reporting.LeadMetrics{}
		txMetrics := &reporting.TransactionMetrics{}
		if err := json.Unmarshal(raw, leadMetrics); err != nil {
			return nil, nil, agent.ValidationError(proto.ActionCreateVisualization, "bad metrics data: %v", err)
		}
		if err := json.Unmarshal(raw, txMetrics); err != nil {
			return nil, nil, agent.ValidationError(proto.ActionCreateVisualization, "bad metrics data: %v", err)
		}
		return leadMetrics, txMetrics, nil
	}

	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, nil, agent.ValidationError(proto.ActionCreateVisualization, "metrics data or user_id required: %v", err)
	}
	dateRange := int(utils.GetMapFieldOr(data, "date_range", float64(reporting.DefaultDateRangeDays)))

	leadMetrics, err := a.reports.LeadMetrics(userID, dateRange)
	if err != nil {
		return nil, nil, err
	}
	txMetrics, err := a.reports.TransactionMetrics(userID, dateRange)
	if err != nil {
		return nil, nil, err
	}
	return leadMetrics, txMetrics, nil
}

func (a *Agent) getMetrics(_ context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionGetMetrics, "%v", err)
	}
	metricType := utils.GetMapFieldOr(data, "metric_type", "leads")
	dateRange := int(utils.GetMapFieldOr(data, "date_range", float64(reporting.DefaultDateRangeDays)))

	switch metricType {
	case "leads":
		metrics, err := a.reports.LeadMetrics(userID, dateRange)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metric_type": metricType, "metrics": metrics}, nil
	case "transactions":
		metrics, err := a.reports.TransactionMetrics(userID, dateRange)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metric_type": metricType, "metrics": metrics}, nil
	default:
		return nil, agent.ValidationError(proto.ActionGetMetrics, "unknown metric type %q", metricType)
	}
}
