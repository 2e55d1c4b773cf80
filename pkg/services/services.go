package services

import (
	"context"

	"digiucto/pkg/models"
)

// ExtractionResult approximates a partial document produced by an external
// AI vision model. All document fields are best-effort; Confidence is the
// extractor's overall score in [0,1].
type ExtractionResult struct {
	Document   models.Document
	Confidence float64
}

// DocumentExtractor turns an uploaded file into a draft document. The
// pipeline treats it as an opaque collaborator and never validates its
// output beyond the standard form validation at verification time.
type DocumentExtractor interface {
	Extract(ctx context.Context, fileBytes []byte, mimeType string) (*ExtractionResult, error)
}

// LedgerSuggestion is an account assignment proposed for a document.
// Unknown suggestions are a legitimate outcome, not an error: the caller
// must route the document to human review.
type LedgerSuggestion struct {
	AccountingCode string `json:"accounting_code"`
	DebitAccount   string `json:"debit_account"`
	CreditAccount  string `json:"credit_account"`
	Unknown        bool   `json:"unknown"`
}

// LedgerSuggester proposes a debit/credit account pair for a document when
// the deterministic heuristic cannot decide.
type LedgerSuggester interface {
	Suggest(ctx context.Context, doc *models.Document) (*LedgerSuggestion, error)
}

// DocumentStore is the persistence contract for documents. Updates carry an
// expected prior status; implementations must reject the write when the
// stored status no longer matches, so concurrent sessions cannot silently
// overwrite each other's transitions.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByStatus(ctx context.Context, ownerID string, statuses ...models.DocumentStatus) ([]*models.Document, error)
	FindDocumentsBySymbol(ctx context.Context, ownerID, variableSymbol string) ([]*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document, expected models.DocumentStatus) error
	DeleteDocument(ctx context.Context, id string) error
}

// TransactionStore is the persistence contract for bank transactions, with
// the same optimistic-concurrency discipline as DocumentStore.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.BankTransaction) error
	GetTransaction(ctx context.Context, id string) (*models.BankTransaction, error)
	ListTransactionsByStatus(ctx context.Context, ownerID string, statuses ...models.TransactionStatus) ([]*models.BankTransaction, error)
	UpdateTransaction(ctx context.Context, tx *models.BankTransaction, expected models.TransactionStatus) error
	DeleteTransaction(ctx context.Context, id string) error
}
