package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

// Match links a bank transaction to the first open document carrying the
// same variable symbol. Transactions without a symbol stay unmatched, as
// do transactions whose symbol matches no open document; those are left
// for manual pairing. When several open documents share the symbol the
// first found wins; the tie-break is deliberately undefined.
func Match(tx *models.BankTransaction, docs []*models.Document, now time.Time) bool {
	if tx.VariableSymbol == "" {
		return false
	}
	for _, doc := range docs {
		if !doc.IsOpen() {
			continue
		}
		if doc.VariableSymbol == tx.VariableSymbol {
			tx.MatchedDocumentID = doc.ID
			tx.AutoMatched = true
			tx.Status = models.TransactionMatched
			tx.MatchedAt = &now
			return true
		}
	}
	return false
}

// Report summarizes a batch matching run.
type Report struct {
	Matched   int
	Unmatched int
	Failed    int
	Errors    map[string]error // transaction ID → persistence failure
}

// Service runs the matcher over stored transactions and documents.
type Service struct {
	documents    services.DocumentStore
	transactions services.TransactionStore
	now          func() time.Time
	log          zerolog.Logger
}

// NewService creates a matching service over the given stores.
func NewService(documents services.DocumentStore, transactions services.TransactionStore) *Service {
	return &Service{
		documents:    documents,
		transactions: transactions,
		now:          time.Now,
		log:          logger.WithComponent("transaction-matcher"),
	}
}

// AutoMatch attempts to match every draft transaction of the owner against
// the owner's open documents. Transactions are processed independently;
// cancellation is honored between members, a member's own update is
// atomic. Matches are persisted with an optimistic status check so a
// concurrently modified transaction fails its own update without
// affecting the rest of the batch.
func (s *Service) AutoMatch(ctx context.Context, ownerID string) (*Report, error) {
	const op = "AutoMatch"

	txs, err := s.transactions.ListTransactionsByStatus(ctx, ownerID, models.TransactionDraft)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list draft transactions: %w", op, err)
	}
	docs, err := s.documents.ListDocumentsByStatus(ctx, ownerID,
		models.StatusDraft, models.StatusVerified, models.StatusExported)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list open documents: %w", op, err)
	}

	s.log.Info().
		Str("owner_id", ownerID).
		Int("transactions", len(txs)).
		Int("open_documents", len(docs)).
		Msg("Starting automatic matching")

	report := &Report{Errors: map[string]error{}}
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: canceled after %d matches: %w", op, report.Matched, err)
		}

		if !Match(tx, docs, s.now()) {
			report.Unmatched++
			continue
		}
		if err := s.transactions.UpdateTransaction(ctx, tx, models.TransactionDraft); err != nil {
			report.Failed++
			report.Errors[tx.ID] = err
			s.log.Warn().
				Err(err).
				Str("transaction_id", tx.ID).
				Msg("Failed to persist match")
			continue
		}

		s.log.Info().
			Str("transaction_id", tx.ID).
			Str("document_id", tx.MatchedDocumentID).
			Str("variable_symbol", tx.VariableSymbol).
			Msg("Transaction auto-matched")
		report.Matched++
	}

	s.log.Info().
		Int("matched", report.Matched).
		Int("unmatched", report.Unmatched).
		Int("failed", report.Failed).
		Msg("Automatic matching finished")
	return report, nil
}
