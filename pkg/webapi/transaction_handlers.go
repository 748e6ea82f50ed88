package webapi

import (
	"net/http"
	"time"

	"realtycrm/pkg/agent"
	"realtycrm/pkg/persistence"
	"realtycrm/pkg/proto"
)

type createTransactionRequest struct {
	LeadID          string `json:"lead_id"`
	PropertyAddress string `json:"property_address"`
	Price           string `json:"price"`
	ClosingDate     string `json:"closing_date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	data := map[string]any{
		"user_id":          requestUser(r).ID,
		"lead_id":          req.LeadID,
		"property_address": req.PropertyAddress,
	}
	if req.Price != "" {
		data["price"] = req.Price
	}
	if req.ClosingDate != "" {
		data["closing_date"] = req.ClosingDate
	}
	s.dispatchTask(w, r, proto.AgentTransactionCoordinator, proto.ActionCreateTransaction, data)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := &persistence.TransactionFilter{}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("lead_id"); v != "" {
		filter.LeadID = &v
	}
	if raw := r.URL.Query().Get("created_after"); raw != "" {
		after, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.serviceError(w, agent.ValidationError("list_transactions", "invalid created_after %q", raw))
			return
		}
		filter.CreatedAfter = &after
	}

	transactions, err := s.store.ListTransactions(requestUser(r).ID, filter)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(requestUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

type updateTransactionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	data := map[string]any{
		"user_id":        requestUser(r).ID,
		"transaction_id": r.PathValue("id"),
		"status":         req.Status,
	}
	if req.Notes != "" {
		data["notes"] = req.Notes
	}
	s.dispatchTask(w, r, proto.AgentTransactionCoordinator, proto.ActionUpdateStatus, data)
}

type generateDocumentRequest struct {
	DocumentType string `json:"document_type"`
	Title        string `json:"title"`
	Signers      []struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"signers"`
}

func (s *Server) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	var req generateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.serviceError(w, err)
		return
	}

	signers := make([]any, 0, len(req.Signers))
	for _, signer := range req.Signers {
		signers = append(signers, map[string]any{"email": signer.Email, "name": signer.Name})
	}

	data := map[string]any{
		"user_id":        requestUser(r).ID,
		"transaction_id": r.PathValue("id"),
		"signers":        signers,
	}
	if req.DocumentType != "" {
		data["document_type"] = req.DocumentType
	}
	if req.Title != "" {
		data["title"] = req.Title
	}
	s.dispatchTask(w, r, proto.AgentTransactionCoordinator, proto.ActionGenerateDocument, data)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := s.store.ListDocumentsByTransaction(requestUser(r).ID, r.PathValue("id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"documents": documents,
		"count":     len(documents),
	})
}

func (s *Server) handleCheckDeadlines(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"user_id":        requestUser(r).ID,
		"transaction_id": r.PathValue("id"),
	}
	if notify := r.URL.Query().Get("notify_email"); notify != "" {
		data["notify_email"] = notify
	}
	s.dispatchTask(w, r, proto.AgentTransactionCoordinator, proto.ActionCheckDeadlines, data)
}
