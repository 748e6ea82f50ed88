// Package transaction implements the transaction coordinator agent: deal
// creation, status updates, document generation, and deadline tracking.
package transaction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/esign"
	"realtycrm/pkg/logx"
	"realtycrm/pkg/mailer"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
	"realtycrm/pkg/utils"
)

// Deadline offsets applied to every new transaction, in days from creation.
const (
	InspectionOffsetDays   = 10
	DueDiligenceOffsetDays = 30
	FinancingOffsetDays    = 45
)

// ReminderWindowDays bounds which deadlines trigger reminder mail.
const ReminderWindowDays = 7

// Deadline is one upcoming important date.
type Deadline struct {
	Name          string    `json:"name"`
	DueDate       time.Time `json:"due_date"`
	DaysRemaining int       `json:"days_remaining"`
}

// Agent answers transaction coordination tasks.
type Agent struct {
	agentCtx *agent.Context
	store    *persistence.Store
	signer   esign.Provider
	sender   mailer.Sender
	tools    agent.ToolTable
	logger   *logx.Logger
}

// New creates the transaction coordinator agent.
func New(store *persistence.Store, signer esign.Provider, sender mailer.Sender) *Agent {
	a := &Agent{
		store:  store,
		signer: signer,
		sender: sender,
		logger: logx.NewLogger(proto.AgentTransactionCoordinator),
	}
	a.tools = agent.ToolTable{
		proto.ActionCreateTransaction: a.createTransaction,
		proto.ActionUpdateStatus:      a.updateStatus,
		proto.ActionGenerateDocument:  a.generateDocument,
		proto.ActionCheckDeadlines:    a.checkDeadlines,
	}
	a.agentCtx = agent.NewContext(proto.AgentTransactionCoordinator, "transaction_coordinator",
		a.tools.Actions(), []string{"transactions", "documents", "deadlines"})
	return a
}

// Context returns the agent's runtime context.
func (a *Agent) Context() *agent.Context {
	return a.agentCtx
}

// HandleTask dispatches one transaction task.
func (a *Agent) HandleTask(ctx context.Context, msg *proto.AgentMessage) *proto.AgentMessage {
	return agent.Run(ctx, a.agentCtx, a.tools, a.logger, msg)
}

func (a *Agent) createTransaction(_ context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCreateTransaction, "%v", err)
	}
	leadID, err := utils.GetStringField(data, "lead_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCreateTransaction, "%v", err)
	}
	address, err := utils.GetStringField(data, "property_address")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCreateTransaction, "%v", err)
	}

	if _, err := a.store.GetLead(userID, leadID); err != nil {
		return nil, agent.NewError(agent.ErrorTypeNotFound, proto.ActionCreateTransaction,
			fmt.Errorf("lead %s: %w", leadID, err))
	}

	tx := &persistence.Transaction{
		ID:              utils.NewID(),
		UserID:          userID,
		LeadID:          leadID,
		PropertyAddress: address,
		Price:           utils.GetMapFieldOr(data, "price", ""),
	}
	if raw := utils.GetMapFieldOr(data, "closing_date", ""); raw != "" {
		closing, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, agent.ValidationError(proto.ActionCreateTransaction, "invalid closing_date %q", raw)
		}
		tx.ClosingDate = &closing
	}

	// Deadlines are computed once at creation and never recomputed.
	now := time.Now().UTC()
	dates := map[string]time.Time{
		"inspection":    now.AddDate(0, 0, InspectionOffsetDays),
		"due_diligence": now.AddDate(0, 0, DueDiligenceOffsetDays),
		"financing":     now.AddDate(0, 0, FinancingOffsetDays),
	}
	if err := tx.SetImportantDates(dates); err != nil {
		return nil, err
	}

	if err := a.store.UpsertTransaction(tx); err != nil {
		return nil, err
	}
	a.logger.Info("created transaction %s for lead %s", tx.ID, leadID)
	return map[string]any{"transaction_id": tx.ID, "transaction": tx}, nil
}

func (a *Agent) updateStatus(_ context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionUpdateStatus, "%v", err)
	}
	transactionID, err := utils.GetStringField(data, "transaction_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionUpdateStatus, "%v", err)
	}
	status, err := utils.GetStringField(data, "status")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionUpdateStatus, "%v", err)
	}
	if !persistence.IsValidTransactionStatus(status) {
		return nil, agent.ValidationError(proto.ActionUpdateStatus, "invalid status %q", status)
	}

	fields := map[string]any{"status": status}
	if notes := utils.GetMapFieldOr(data, "notes", ""); notes != "" {
		fields["notes"] = notes
	}

	updated, err := a.store.UpdateTransaction(userID, transactionID, fields)
	if err != nil {
		if err == persistence.ErrNotFound {
			return nil, agent.NewError(agent.ErrorTypeNotFound, proto.ActionUpdateStatus,
				fmt.Errorf("transaction %s not found", transactionID))
		}
		return nil, err
	}
	return map[string]any{"transaction": updated}, nil
}

func (a *Agent) generateDocument(ctx context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "%v", err)
	}
	transactionID, err := utils.GetStringField(data, "transaction_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "%v", err)
	}
	docType := utils.GetMapFieldOr(data, "document_type", persistence.DocTypeOther)
	if !persistence.IsValidDocumentType(docType) {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "invalid document_type %q", docType)
	}

	tx, err := a.store.GetTransaction(userID, transactionID)
	if err != nil {
		if err == persistence.ErrNotFound {
			return nil, agent.NewError(agent.ErrorTypeNotFound, proto.ActionGenerateDocument,
				fmt.Errorf("transaction %s not found", transactionID))
		}
		return nil, err
	}

	signers, err := parseSigners(data)
	if err != nil {
		return nil, err
	}

	title := utils.GetMapFieldOr(data, "title",
		fmt.Sprintf("%s - %s", docType, tx.PropertyAddress))
	content := fmt.Sprintf("%s for %s. Price: %s. Status: %s.",
		docType, tx.PropertyAddress, tx.Price, tx.Status)

	envelope, err := a.signer.CreateEnvelope(ctx, &esign.EnvelopeRequest{
		Title:   title,
		Content: content,
		Signers: signers,
	})
	if err != nil {
		return nil, err
	}

	signersJSON, err := json.Marshal(signers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signers: %w", err)
	}

	doc := &persistence.Document{
		ID:            utils.NewID(),
		UserID:        userID,
		TransactionID: transactionID,
		Title:         title,
		DocType:       docType,
		Status:        esign.MapProviderStatus(envelope.Status),
		EnvelopeID:    envelope.ID,
		Signers:       string(signersJSON),
		StoragePath:   "documents/" + utils.SanitizeIdentifier(title) + ".pdf",
	}
	if err := a.store.UpsertDocument(doc); err != nil {
		return nil, err
	}

	a.logger.Info("generated document %s (envelope %s)", doc.ID, envelope.ID)
	return map[string]any{"document_id": doc.ID, "envelope_id": envelope.ID, "document": doc}, nil
}

func (a *Agent) checkDeadlines(_ context.Context, data map[string]any) (any, error) {
	userID, err := utils.GetStringField(data, "user_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCheckDeadlines, "%v", err)
	}
	transactionID, err := utils.GetStringField(data, "transaction_id")
	if err != nil {
		return nil, agent.ValidationError(proto.ActionCheckDeadlines, "%v", err)
	}

	tx, err := a.store.GetTransaction(userID, transactionID)
	if err != nil {
		if err == persistence.ErrNotFound {
			return nil, agent.NewError(agent.ErrorTypeNotFound, proto.ActionCheckDeadlines,
				fmt.Errorf("transaction %s not found", transactionID))
		}
		return nil, err
	}

	dates, err := tx.GetImportantDates()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	deadlines := make([]Deadline, 0, len(dates))
	for name, due := range dates {
		if due.Before(now) {
			continue
		}
		deadlines = append(deadlines, Deadline{
			Name:          name,
			DueDate:       due,
			DaysRemaining: int(due.Sub(now).Hours() / 24),
		})
	}
	sort.Slice(deadlines, func(i, j int) bool {
		return deadlines[i].DueDate.Before(deadlines[j].DueDate)
	})

	// Optional reminder mail for deadlines inside the reminder window.
	if notify := utils.GetMapFieldOr(data, "notify_email", ""); notify != "" {
		for _, deadline := range deadlines {
			if deadline.DaysRemaining > ReminderWindowDays {
				continue
			}
			mailData := map[string]any{
				"deadline_name":    deadline.Name,
				"property_address": tx.PropertyAddress,
				"due_date":         deadline.DueDate.Format("2006-01-02"),
				"days_remaining":   deadline.DaysRemaining,
			}
			if err := a.sender.SendTemplate(notify, mailer.TemplateDeadlineReminder, mailData); err != nil {
				return nil, fmt.Errorf("failed to send deadline reminder: %w", err)
			}
		}
	}

	return map[string]any{"transaction_id": transactionID, "deadlines": deadlines}, nil
}

func parseSigners(data map[string]any) ([]esign.Signer, error) {
	raw, ok := data["signers"]
	if !ok || raw == nil {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "signers are required")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "signers must be a list")
	}

	signers := make([]esign.Signer, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, agent.ValidationError(proto.ActionGenerateDocument, "signer entries must be objects")
		}
		email, err := utils.GetStringField(entry, "email")
		if err != nil {
			return nil, agent.ValidationError(proto.ActionGenerateDocument, "signer %v", err)
		}
		signers = append(signers, esign.Signer{
			Email: email,
			Name:  utils.GetMapFieldOr(entry, "name", ""),
		})
	}
	if len(signers) == 0 {
		return nil, agent.ValidationError(proto.ActionGenerateDocument, "signers are required")
	}
	return signers, nil
}
