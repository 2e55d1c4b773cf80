package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

// Store errors
var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when an update's expected
	// prior status no longer matches the stored record: another session
	// transitioned it first. The caller must re-read and retry or
	// surface the conflict, never overwrite.
	ErrConcurrentModification = errors.New("record was modified concurrently")
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	status          TEXT NOT NULL,
	variable_symbol TEXT NOT NULL DEFAULT '',
	payload         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_owner_status ON documents(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_documents_symbol ON documents(owner_id, variable_symbol);

CREATE TABLE IF NOT EXISTS bank_transactions (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	status          TEXT NOT NULL,
	variable_symbol TEXT NOT NULL DEFAULT '',
	payload         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_owner_status ON bank_transactions(owner_id, status);
`

// Store persists documents and bank transactions in SQLite. Status
// transitions are guarded by an expected-prior-status check so concurrent
// sessions cannot silently overwrite each other.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (and if necessary initializes) the database at path.
func Open(path string) (*Store, error) {
	const op = "Open"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to initialize schema: %w", op, err)
	}

	return &Store{
		db:  db,
		log: logger.WithComponent("store"),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDocument inserts a new document, assigning an ID when absent.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	const op = "CreateDocument"

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: failed to encode document: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, status, variable_symbol, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, string(doc.Status), doc.VariableSymbol, string(payload), doc.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%s: insert failed: %w", op, err)
	}

	s.log.Debug().Str("document_id", doc.ID).Msg("Document created")
	return nil
}

// GetDocument loads one document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	const op = "GetDocument"

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: document %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	return decodeDocument(payload)
}

// ListDocumentsByStatus returns the owner's documents in any of the given
// statuses, ordered by creation time.
func (s *Store) ListDocumentsByStatus(ctx context.Context, ownerID string, statuses ...models.DocumentStatus) ([]*models.Document, error) {
	const op = "ListDocumentsByStatus"

	if len(statuses) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT payload FROM documents WHERE owner_id = ? AND status IN (%s) ORDER BY created_at, id`,
		placeholders(len(statuses)))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, ownerID)
	for _, st := range statuses {
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%s: scan failed: %w", op, err)
		}
		doc, err := decodeDocument(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// FindDocumentsBySymbol returns the owner's documents carrying the given
// variable symbol, ordered by creation time.
func (s *Store) FindDocumentsBySymbol(ctx context.Context, ownerID, variableSymbol string) ([]*models.Document, error) {
	const op = "FindDocumentsBySymbol"

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM documents WHERE owner_id = ? AND variable_symbol = ? ORDER BY created_at, id`,
		ownerID, variableSymbol)
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%s: scan failed: %w", op, err)
		}
		doc, err := decodeDocument(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocument writes the document back, guarded by the expected prior
// status. A stale expectation fails with ErrConcurrentModification.
func (s *Store) UpdateDocument(ctx context.Context, doc *models.Document, expected models.DocumentStatus) error {
	const op = "UpdateDocument"

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: failed to encode document: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, variable_symbol = ?, payload = ? WHERE id = ? AND status = ?`,
		string(doc.Status), doc.VariableSymbol, string(payload), doc.ID, string(expected))
	if err != nil {
		return fmt.Errorf("%s: update failed: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return s.updateConflict(ctx, op, "documents", doc.ID, string(expected))
	}
	return nil
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	const op = "DeleteDocument"

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: delete failed: %w", op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%s: document %s: %w", op, id, ErrNotFound)
	}
	return nil
}

// CreateTransaction inserts a new bank transaction, assigning an ID when
// absent.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.BankTransaction) error {
	const op = "CreateTransaction"

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("%s: failed to encode transaction: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bank_transactions (id, owner_id, status, variable_symbol, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.OwnerID, string(tx.Status), tx.VariableSymbol, string(payload), tx.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%s: insert failed: %w", op, err)
	}
	return nil
}

// GetTransaction loads one bank transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (*models.BankTransaction, error) {
	const op = "GetTransaction"

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM bank_transactions WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: transaction %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	return decodeTransaction(payload)
}

// ListTransactionsByStatus returns the owner's transactions in any of the
// given statuses, ordered by creation time.
func (s *Store) ListTransactionsByStatus(ctx context.Context, ownerID string, statuses ...models.TransactionStatus) ([]*models.BankTransaction, error) {
	const op = "ListTransactionsByStatus"

	if len(statuses) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT payload FROM bank_transactions WHERE owner_id = ? AND status IN (%s) ORDER BY created_at, id`,
		placeholders(len(statuses)))
	args := make([]any, 0, len(statuses)+1)
	args = append(args, ownerID)
	for _, st := range statuses {
		args = append(args, string(st))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query failed: %w", op, err)
	}
	defer rows.Close()

	var txs []*models.BankTransaction
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%s: scan failed: %w", op, err)
		}
		tx, err := decodeTransaction(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// UpdateTransaction writes the transaction back, guarded by the expected
// prior status.
func (s *Store) UpdateTransaction(ctx context.Context, tx *models.BankTransaction, expected models.TransactionStatus) error {
	const op = "UpdateTransaction"

	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("%s: failed to encode transaction: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_transactions SET status = ?, variable_symbol = ?, payload = ? WHERE id = ? AND status = ?`,
		string(tx.Status), tx.VariableSymbol, string(payload), tx.ID, string(expected))
	if err != nil {
		return fmt.Errorf("%s: update failed: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return s.updateConflict(ctx, op, "bank_transactions", tx.ID, string(expected))
	}
	return nil
}

// DeleteTransaction removes a bank transaction.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	const op = "DeleteTransaction"

	res, err := s.db.ExecContext(ctx, `DELETE FROM bank_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: delete failed: %w", op, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%s: transaction %s: %w", op, id, ErrNotFound)
	}
	return nil
}

// updateConflict distinguishes a missing record from a stale status
// expectation after a zero-row update.
func (s *Store) updateConflict(ctx context.Context, op, table, id, expected string) error {
	var current string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT status FROM %s WHERE id = ?`, table), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: record %s: %w", op, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: conflict check failed: %w", op, err)
	}

	s.log.Warn().
		Str("id", id).
		Str("expected_status", expected).
		Str("current_status", current).
		Msg("Optimistic concurrency check failed")
	return fmt.Errorf("%s: record %s has status %q, expected %q: %w",
		op, id, current, expected, ErrConcurrentModification)
}

func decodeDocument(payload string) (*models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

func decodeTransaction(payload string) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	if err := json.Unmarshal([]byte(payload), &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return &tx, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
