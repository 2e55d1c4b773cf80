package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"digiucto/internal/lifecycle"
	"digiucto/internal/logger"
	"digiucto/internal/pohoda"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

// Report lists the per-member outcome of a batch operation. Formatting is
// all-or-nothing, but persistence writes per member may still partially
// succeed; the report surfaces exactly which members failed so callers
// never claim full success on partial failure.
type Report struct {
	Succeeded int
	Failed    int
	Errors    map[string]error // member ID → failure
}

func newReport() *Report {
	return &Report{Errors: map[string]error{}}
}

func (r *Report) fail(id string, err error) {
	r.Failed++
	r.Errors[id] = err
}

// Service formats batches of documents or bank transactions and advances
// the members to exported.
type Service struct {
	formatter    *pohoda.Formatter
	documents    services.DocumentStore
	transactions services.TransactionStore
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates an export service.
func NewService(formatter *pohoda.Formatter, documents services.DocumentStore, transactions services.TransactionStore) *Service {
	return &Service{
		formatter:    formatter,
		documents:    documents,
		transactions: transactions,
		now:          time.Now,
		log:          logger.WithComponent("export-service"),
	}
}

// ExportDocuments serializes the documents and, on success, transitions
// each member to exported with an optimistic status check. A formatting
// failure aborts the whole batch with no members changed.
func (s *Service) ExportDocuments(ctx context.Context, docs []*models.Document) ([]byte, *Report, error) {
	const op = "ExportDocuments"

	xml, err := s.formatter.FormatInvoices(docs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	report := newReport()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return xml, report, fmt.Errorf("%s: canceled after %d transitions: %w", op, report.Succeeded, err)
		}

		if err := lifecycle.MarkExported(doc, s.now()); err != nil {
			report.fail(doc.ID, err)
			continue
		}
		if err := s.documents.UpdateDocument(ctx, doc, models.StatusVerified); err != nil {
			report.fail(doc.ID, err)
			continue
		}
		report.Succeeded++
	}

	s.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Document export finished")
	return xml, report, nil
}

// ExportTransactions serializes the bank transactions and advances each
// member to exported.
func (s *Service) ExportTransactions(ctx context.Context, txs []*models.BankTransaction) ([]byte, *Report, error) {
	const op = "ExportTransactions"

	xml, err := s.formatter.FormatBankTransactions(txs)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	report := newReport()
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return xml, report, fmt.Errorf("%s: canceled after %d transitions: %w", op, report.Succeeded, err)
		}

		expected := tx.Status
		if err := lifecycle.MarkTransactionExported(tx, s.now()); err != nil {
			report.fail(tx.ID, err)
			continue
		}
		if err := s.transactions.UpdateTransaction(ctx, tx, expected); err != nil {
			report.fail(tx.ID, err)
			continue
		}
		report.Succeeded++
	}

	s.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Bank transaction export finished")
	return xml, report, nil
}
