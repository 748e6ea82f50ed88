package persistence

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Lead status constants.
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusQualified   = "qualified"
	LeadStatusNegotiating = "negotiating"
	LeadStatusConverted   = "converted"
	LeadStatusLost        = "lost"
)

// ValidLeadStatuses returns all valid lead statuses.
func ValidLeadStatuses() []string {
	return []string{
		LeadStatusNew,
		LeadStatusContacted,
		LeadStatusQualified,
		LeadStatusNegotiating,
		LeadStatusConverted,
		LeadStatusLost,
	}
}

// IsValidLeadStatus checks if a status string is valid for leads.
func IsValidLeadStatus(status string) bool {
	for _, valid := range ValidLeadStatuses() {
		if status == valid {
			return true
		}
	}
	return false
}

// Transaction status constants.
const (
	TxStatusPending       = "pending"
	TxStatusActive        = "active"
	TxStatusUnderContract = "under_contract"
	TxStatusClosing       = "closing"
	TxStatusClosed        = "closed"
	TxStatusCancelled     = "cancelled"
)

// ValidTransactionStatuses returns all valid transaction statuses.
func ValidTransactionStatuses() []string {
	return []string{
		TxStatusPending,
		TxStatusActive,
		TxStatusUnderContract,
		TxStatusClosing,
		TxStatusClosed,
		TxStatusCancelled,
	}
}

// IsValidTransactionStatus checks if a status string is valid for transactions.
func IsValidTransactionStatus(status string) bool {
	for _, valid := range ValidTransactionStatuses() {
		if status == valid {
			return true
		}
	}
	return false
}

// Document type constants.
const (
	DocTypePurchaseAgreement = "purchase_agreement"
	DocTypeListingAgreement  = "listing_agreement"
	DocTypeDisclosure        = "disclosure"
	DocTypeAmendment         = "amendment"
	DocTypeInspection        = "inspection"
	DocTypeOther             = "other"
)

// IsValidDocumentType checks if a document type string is valid.
func IsValidDocumentType(docType string) bool {
	switch docType {
	case DocTypePurchaseAgreement, DocTypeListingAgreement, DocTypeDisclosure,
		DocTypeAmendment, DocTypeInspection, DocTypeOther:
		return true
	default:
		return false
	}
}

// Document status constants.
const (
	DocStatusDraft            = "draft"
	DocStatusPendingSignature = "pending_signature"
	DocStatusSigned           = "signed"
	DocStatusExpired          = "expired"
	DocStatusCancelled        = "cancelled"
)

// Task status constants.
const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusCancelled  = "cancelled"
)

// User represents an account that owns leads and transactions.
type User struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name,omitempty"`
	CompanyName   string    `json:"company_name,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	PasswordHash  string    `json:"-"`
	Settings      string    `json:"settings,omitempty"` // JSON blob
}

// Lead represents a prospective client.
//
//nolint:govet // struct alignment optimization not critical for this type
type Lead struct {
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastContacted *time.Time `json:"last_contacted,omitempty"`
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Status        string     `json:"status"`
	Source        string     `json:"source,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Metadata      string     `json:"metadata,omitempty"` // JSON blob for extensibility
}

// Transaction represents a property deal in progress.
//
//nolint:govet // struct alignment optimization not critical for this type
type Transaction struct {
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ClosingDate     *time.Time `json:"closing_date,omitempty"`
	ContractDate    *time.Time `json:"contract_date,omitempty"`
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	LeadID          string     `json:"lead_id,omitempty"`
	PropertyAddress string     `json:"property_address"`
	Status          string     `json:"status"`
	Price           string     `json:"price,omitempty"`
	ImportantDates  string     `json:"important_dates,omitempty"` // JSON blob name -> RFC3339
	Notes           string     `json:"notes,omitempty"`
	Metadata        string     `json:"metadata,omitempty"`
}

// SetImportantDates serializes the deadline map into the transaction.
func (t *Transaction) SetImportantDates(dates map[string]time.Time) error {
	encoded := make(map[string]string, len(dates))
	for name, at := range dates {
		encoded[name] = at.UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("failed to encode important dates: %w", err)
	}
	t.ImportantDates = string(raw)
	return nil
}

// GetImportantDates parses the deadline map out of the transaction. An
// empty column yields an empty map.
func (t *Transaction) GetImportantDates() (map[string]time.Time, error) {
	dates := make(map[string]time.Time)
	if t.ImportantDates == "" {
		return dates, nil
	}
	var encoded map[string]string
	if err := json.Unmarshal([]byte(t.ImportantDates), &encoded); err != nil {
		return nil, fmt.Errorf("failed to decode important dates: %w", err)
	}
	for name, raw := range encoded {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse important date %s: %w", name, err)
		}
		dates[name] = at
	}
	return dates, nil
}

// ParsePrice converts a price string into a float, tolerating "$" and ","
// decorations. Empty input parses to 0.
func ParsePrice(price string) (float64, error) {
	cleaned := strings.TrimSpace(price)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return value, nil
}

// Document represents a generated contract or disclosure.
//
//nolint:govet // struct alignment optimization not critical for this type
type Document struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Title         string    `json:"title"`
	DocType       string    `json:"doc_type,omitempty"`
	Status        string    `json:"status"`
	StoragePath   string    `json:"storage_path,omitempty"`
	EnvelopeID    string    `json:"envelope_id,omitempty"`
	Signers       string    `json:"signers,omitempty"` // JSON blob
	Metadata      string    `json:"metadata,omitempty"`
}

// Task represents a follow-up item attached to a lead.
//
//nolint:govet // struct alignment optimization not critical for this type
type Task struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	LeadID      string     `json:"lead_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Priority    int        `json:"priority"`
	Metadata    string     `json:"metadata,omitempty"`
}

// LeadFilter represents criteria for querying leads.
type LeadFilter struct {
	Status       *string    `json:"status,omitempty"`
	Source       *string    `json:"source,omitempty"`
	CreatedAfter *time.Time `json:"created_after,omitempty"`
}

// TransactionFilter represents criteria for querying transactions.
type TransactionFilter struct {
	Status       *string    `json:"status,omitempty"`
	LeadID       *string    `json:"lead_id,omitempty"`
	CreatedAfter *time.Time `json:"created_after,omitempty"`
}

// TaskFilter represents criteria for querying tasks.
type TaskFilter struct {
	Status    *string    `json:"status,omitempty"`
	DueBefore *time.Time `json:"due_before,omitempty"`
}
