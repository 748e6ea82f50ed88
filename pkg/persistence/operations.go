package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store provides methods for database operations. All lead, transaction,
// document, and task queries are scoped to the owning user id.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- users ---

// CreateUser inserts a new user row. Email uniqueness is enforced by the
// schema.
func (s *Store) CreateUser(user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, full_name, company_name, license_number, password_hash, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.FullName, user.CompanyName, user.LicenseNumber,
		user.PasswordHash, user.Settings, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByEmail returns the user registered under email.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, email, full_name, company_name, license_number, password_hash, settings, created_at, updated_at
		FROM users WHERE email = ?
	`, email)
	return scanUser(row)
}

// GetUserByID returns the user with the given id.
func (s *Store) GetUserByID(id string) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, email, full_name, company_name, license_number, password_hash, settings, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var fullName, companyName, licenseNumber, settings sql.NullString
	err := row.Scan(&user.ID, &user.Email, &fullName, &companyName,
		&licenseNumber, &user.PasswordHash, &settings, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.FullName = fullName.String
	user.CompanyName = companyName.String
	user.LicenseNumber = licenseNumber.String
	user.Settings = settings.String
	return &user, nil
}

// --- leads ---

const leadColumns = `id, user_id, first_name, last_name, email, phone, status, source, last_contacted, notes, metadata, created_at, updated_at`

// UpsertLead inserts or updates a lead record.
func (s *Store) UpsertLead(lead *Lead) error {
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = LeadStatusNew
	}
	if !IsValidLeadStatus(lead.Status) {
		return fmt.Errorf("invalid lead status %q", lead.Status)
	}

	_, err := s.db.Exec(`
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			phone = excluded.phone,
			status = excluded.status,
			source = excluded.source,
			last_contacted = excluded.last_contacted,
			notes = excluded.notes,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, lead.ID, lead.UserID, lead.FirstName, lead.LastName, lead.Email, lead.Phone,
		lead.Status, lead.Source, lead.LastContacted, lead.Notes, lead.Metadata,
		lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert lead %s: %w", lead.ID, err)
	}
	return nil
}

// GetLead returns the lead with the given id if it belongs to userID.
func (s *Store) GetLead(userID, id string) (*Lead, error) {
	rows, err := s.db.Query(`SELECT `+leadColumns+` FROM leads WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanLead(rows)
}

// ListLeads returns userID's leads matching the filter, newest first.
func (s *Store) ListLeads(userID string, filter *LeadFilter) ([]*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE user_id = ?`
	args := []any{userID}

	if filter != nil {
		if filter.Status != nil {
			query += " AND status = ?"
			args = append(args, *filter.Status)
		}
		if filter.Source != nil {
			query += " AND source = ?"
			args = append(args, *filter.Source)
		}
		if filter.CreatedAfter != nil {
			query += " AND created_at >= ?"
			args = append(args, filter.CreatedAfter.UTC())
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateLead applies a partial update to one of userID's leads and returns
// the updated row. Only whitelisted columns may change.
func (s *Store) UpdateLead(userID, id string, fields map[string]any) (*Lead, error) {
	allowed := map[string]bool{
		"first_name": true, "last_name": true, "email": true, "phone": true,
		"status": true, "source": true, "last_contacted": true, "notes": true,
		"metadata": true,
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+3)
	for column, value := range fields {
		if !allowed[column] {
			return nil, fmt.Errorf("cannot update lead column %q", column)
		}
		if column == "status" {
			status, _ := value.(string)
			if !IsValidLeadStatus(status) {
				return nil, fmt.Errorf("invalid lead status %q", status)
			}
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}
	if len(setClauses) == 0 {
		return s.GetLead(userID, id)
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, userID)

	query := "UPDATE leads SET " + strings.Join(setClauses, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetLead(userID, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var lead Lead
	var lastName, email, phone, source, notes, metadata sql.NullString
	var lastContacted sql.NullTime
	err := row.Scan(&lead.ID, &lead.UserID, &lead.FirstName, &lastName, &email,
		&phone, &lead.Status, &source, &lastContacted, &notes, &metadata,
		&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}
	lead.LastName = lastName.String
	lead.Email = email.String
	lead.Phone = phone.String
	lead.Source = source.String
	lead.Notes = notes.String
	lead.Metadata = metadata.String
	if lastContacted.Valid {
		at := lastContacted.Time
		lead.LastContacted = &at
	}
	return &lead, nil
}

// --- transactions ---

const transactionColumns = `id, user_id, lead_id, property_address, status, price, closing_date, contract_date, important_dates, notes, metadata, created_at, updated_at`

// UpsertTransaction inserts or updates a transaction record.
func (s *Store) UpsertTransaction(tx *Transaction) error {
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	if tx.Status == "" {
		tx.Status = TxStatusPending
	}
	if !IsValidTransactionStatus(tx.Status) {
		return fmt.Errorf("invalid transaction status %q", tx.Status)
	}

	_, err := s.db.Exec(`
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lead_id = excluded.lead_id,
			property_address = excluded.property_address,
			status = excluded.status,
			price = excluded.price,
			closing_date = excluded.closing_date,
			contract_date = excluded.contract_date,
			important_dates = excluded.important_dates,
			notes = excluded.notes,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, tx.ID, tx.UserID, nullString(tx.LeadID), tx.PropertyAddress, tx.Status,
		tx.Price, tx.ClosingDate, tx.ContractDate, tx.ImportantDates, tx.Notes,
		tx.Metadata, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

// GetTransaction returns the transaction with the given id if it belongs to
// userID.
func (s *Store) GetTransaction(userID, id string) (*Transaction, error) {
	rows, err := s.db.Query(`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanTransaction(rows)
}

// ListTransactions returns userID's transactions matching the filter,
// newest first.
func (s *Store) ListTransactions(userID string, filter *TransactionFilter) ([]*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if filter != nil {
		if filter.Status != nil {
			query += " AND status = ?"
			args = append(args, *filter.Status)
		}
		if filter.LeadID != nil {
			query += " AND lead_id = ?"
			args = append(args, *filter.LeadID)
		}
		if filter.CreatedAfter != nil {
			query += " AND created_at >= ?"
			args = append(args, filter.CreatedAfter.UTC())
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// UpdateTransaction applies a partial update to one of userID's transactions
// and returns the updated row.
func (s *Store) UpdateTransaction(userID, id string, fields map[string]any) (*Transaction, error) {
	allowed := map[string]bool{
		"lead_id": true, "property_address": true, "status": true, "price": true,
		"closing_date": true, "contract_date": true, "important_dates": true,
		"notes": true, "metadata": true,
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+3)
	for column, value := range fields {
		if !allowed[column] {
			return nil, fmt.Errorf("cannot update transaction column %q", column)
		}
		if column == "status" {
			status, _ := value.(string)
			if !IsValidTransactionStatus(status) {
				return nil, fmt.Errorf("invalid transaction status %q", status)
			}
		}
		setClauses = append(setClauses, column+" = ?")
		args = append(args, value)
	}
	if len(setClauses) == 0 {
		return s.GetTransaction(userID, id)
	}

	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, userID)

	query := "UPDATE transactions SET " + strings.Join(setClauses, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetTransaction(userID, id)
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var tx Transaction
	var leadID, price, importantDates, notes, metadata sql.NullString
	var closingDate, contractDate sql.NullTime
	err := row.Scan(&tx.ID, &tx.UserID, &leadID, &tx.PropertyAddress, &tx.Status,
		&price, &closingDate, &contractDate, &importantDates, &notes, &metadata,
		&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.LeadID = leadID.String
	tx.Price = price.String
	tx.ImportantDates = importantDates.String
	tx.Notes = notes.String
	tx.Metadata = metadata.String
	if closingDate.Valid {
		at := closingDate.Time
		tx.ClosingDate = &at
	}
	if contractDate.Valid {
		at := contractDate.Time
		tx.ContractDate = &at
	}
	return &tx, nil
}

// --- documents ---

const documentColumns = `id, user_id, transaction_id, title, doc_type, status, storage_path, envelope_id, signers, metadata, created_at, updated_at`

// UpsertDocument inserts or updates a document record.
func (s *Store) UpsertDocument(doc *Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = DocStatusDraft
	}

	_, err := s.db.Exec(`
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			doc_type = excluded.doc_type,
			status = excluded.status,
			storage_path = excluded.storage_path,
			envelope_id = excluded.envelope_id,
			signers = excluded.signers,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.UserID, nullString(doc.TransactionID), doc.Title,
		nullString(doc.DocType), doc.Status, doc.StoragePath, doc.EnvelopeID,
		doc.Signers, doc.Metadata, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns the document with the given id if it belongs to userID.
func (s *Store) GetDocument(userID, id string) (*Document, error) {
	rows, err := s.db.Query(`SELECT `+documentColumns+` FROM documents WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query document %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	return scanDocument(rows)
}

// ListDocumentsByTransaction returns the documents attached to one of
// userID's transactions.
func (s *Store) ListDocumentsByTransaction(userID, transactionID string) ([]*Document, error) {
	rows, err := s.db.Query(`
		SELECT `+documentColumns+` FROM documents
		WHERE user_id = ? AND transaction_id = ?
		ORDER BY created_at DESC
	`, userID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var documents []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var transactionID, docType, storagePath, envelopeID, signers, metadata sql.NullString
	err := row.Scan(&doc.ID, &doc.UserID, &transactionID, &doc.Title, &docType,
		&doc.Status, &storagePath, &envelopeID, &signers, &metadata,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.TransactionID = transactionID.String
	doc.DocType = docType.String
	doc.StoragePath = storagePath.String
	doc.EnvelopeID = envelopeID.String
	doc.Signers = signers.String
	doc.Metadata = metadata.String
	return &doc, nil
}

// --- tasks ---

const taskColumns = `id, user_id, lead_id, title, description, due_date, status, priority, assigned_to, metadata, created_at, updated_at`

// UpsertTask inserts or updates a task record.
func (s *Store) UpsertTask(task *Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = TaskStatusOpen
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			due_date = excluded.due_date,
			status = excluded.status,
			priority = excluded.priority,
			assigned_to = excluded.assigned_to,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, task.ID, task.UserID, nullString(task.LeadID), task.Title, task.Description,
		task.DueDate, task.Status, task.Priority, task.AssignedTo, task.Metadata,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns userID's tasks matching the filter, soonest due first.
func (s *Store) ListTasks(userID string, filter *TaskFilter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if filter != nil {
		if filter.Status != nil {
			query += " AND status = ?"
			args = append(args, *filter.Status)
		}
		if filter.DueBefore != nil {
			query += " AND due_date <= ?"
			args = append(args, filter.DueBefore.UTC())
		}
	}
	query += " ORDER BY due_date ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var leadID, description, assignedTo, metadata sql.NullString
	var dueDate sql.NullTime
	err := row.Scan(&task.ID, &task.UserID, &leadID, &task.Title, &description,
		&dueDate, &task.Status, &task.Priority, &assignedTo, &metadata,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	task.LeadID = leadID.String
	task.Description = description.String
	task.AssignedTo = assignedTo.String
	task.Metadata = metadata.String
	if dueDate.Valid {
		at := dueDate.Time
		task.DueDate = &at
	}
	return &task, nil
}

// nullString converts "" to NULL so optional foreign keys stay unset.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
