package ledger

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"digiucto/internal/logger"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

// Resolution is the account assignment produced for a document. When
// Certain is false the accounts are empty and the code is the uncertainty
// sentinel: the document needs a human decision and must never be
// defaulted silently.
type Resolution struct {
	AccountingCode string
	DebitAccount   string
	CreditAccount  string
	Certain        bool
}

// Unknown returns the sentinel resolution for documents the heuristic
// cannot decide.
func Unknown() Resolution {
	return Resolution{AccountingCode: CodeUnknown}
}

var accountFormat = regexp.MustCompile(`^\d{3}$`)

// Resolver infers the accounting code and the debit/credit account pair
// from document attributes. It is deterministic over its inputs and the
// rule table; an optional AI suggester is consulted only when the
// heuristic is uncertain.
type Resolver struct {
	rules     *Rules
	suggester services.LedgerSuggester
	log       zerolog.Logger
}

// NewResolver creates a resolver over the given rule table. A nil rules
// pointer selects the built-in defaults. The suggester may be nil.
func NewResolver(rules *Rules, suggester services.LedgerSuggester) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Resolver{
		rules:     rules,
		suggester: suggester,
		log:       logger.WithComponent("ledger-resolver"),
	}
}

// Resolve runs the deterministic heuristic. Advance invoices and credit
// notes are outside the heuristic's coverage and always resolve Unknown.
func (r *Resolver) Resolve(doc *models.Document) Resolution {
	switch doc.Type {
	case models.DocumentReceivedInvoice, models.DocumentReceipt, models.DocumentTaxDocument:
		return r.resolveExpense(doc)
	case models.DocumentIssuedInvoice:
		return r.resolveIssued(doc)
	default:
		r.log.Debug().
			Str("document_id", doc.ID).
			Str("type", string(doc.Type)).
			Msg("Document type outside heuristic coverage, returning unknown")
		return Unknown()
	}
}

// ResolveWithSuggestion runs the heuristic and, when it is uncertain,
// consults the AI suggester. Suggestions failing the account format check
// degrade to Unknown rather than being trusted.
func (r *Resolver) ResolveWithSuggestion(ctx context.Context, doc *models.Document) Resolution {
	resolution := r.Resolve(doc)
	if resolution.Certain || r.suggester == nil {
		return resolution
	}

	suggestion, err := r.suggester.Suggest(ctx, doc)
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("document_id", doc.ID).
			Msg("Ledger suggestion failed, keeping unknown resolution")
		return resolution
	}
	if suggestion.Unknown {
		r.log.Info().
			Str("document_id", doc.ID).
			Msg("Suggester declined to assign accounts")
		return resolution
	}
	if !r.validSuggestion(suggestion) {
		r.log.Warn().
			Str("document_id", doc.ID).
			Str("debit", suggestion.DebitAccount).
			Str("credit", suggestion.CreditAccount).
			Str("code", suggestion.AccountingCode).
			Msg("Rejecting malformed ledger suggestion")
		return resolution
	}

	r.log.Info().
		Str("document_id", doc.ID).
		Str("debit", suggestion.DebitAccount).
		Str("credit", suggestion.CreditAccount).
		Msg("Using AI ledger suggestion")
	return Resolution{
		AccountingCode: suggestion.AccountingCode,
		DebitAccount:   suggestion.DebitAccount,
		CreditAccount:  suggestion.CreditAccount,
		Certain:        true,
	}
}

// Apply writes a resolution onto the document's ledger fields.
func (res Resolution) Apply(doc *models.Document) {
	doc.AccountingCode = res.AccountingCode
	doc.DebitAccount = res.DebitAccount
	doc.CreditAccount = res.CreditAccount
}

func (r *Resolver) resolveExpense(doc *models.Document) Resolution {
	code := CodeCashDocument
	if doc.DueDate != "" {
		code = CodeReceivedInvoice
	}

	debit := r.debitForContent(doc)
	credit := r.creditForSettlement(doc)

	return Resolution{
		AccountingCode: code,
		DebitAccount:   debit,
		CreditAccount:  credit,
		Certain:        true,
	}
}

func (r *Resolver) resolveIssued(doc *models.Document) Resolution {
	code := CodeCashDocument
	if doc.DueDate != "" {
		code = CodeReceivedInvoice
	}

	text := itemText(doc)
	credit := AccountRevenueGoods
	switch {
	case containsAny(text, r.rules.OwnProductionKeywords):
		credit = AccountRevenueOwn
	case containsAny(text, r.rules.ServiceKeywords):
		credit = AccountRevenueServices
	}

	// Issued invoices always debit receivables, irrespective of content.
	return Resolution{
		AccountingCode: code,
		DebitAccount:   AccountReceivables,
		CreditAccount:  credit,
		Certain:        true,
	}
}

// debitForContent picks the expense account from line-item names. An item
// above the fixed-asset threshold books to asset acquisition; otherwise
// the first keyword match wins and materials is the default.
func (r *Resolver) debitForContent(doc *models.Document) string {
	for _, item := range doc.Items {
		if item.TotalWithVAT > r.rules.FixedAssetThreshold {
			return AccountFixedAssets
		}
	}
	if account := r.rules.matchExpense(itemText(doc)); account != "" {
		return account
	}
	return AccountMaterials
}

// creditForSettlement picks the credit side. A due date means the invoice
// is not yet settled and books against payables; otherwise the payment
// method decides which money account was touched.
func (r *Resolver) creditForSettlement(doc *models.Document) string {
	if doc.DueDate != "" {
		return AccountPayables
	}
	switch doc.PaymentMethod {
	case models.PaymentCash:
		return AccountCashRegister
	case models.PaymentCard:
		return AccountInTransit
	default:
		return AccountBank
	}
}

func (r *Resolver) validSuggestion(s *services.LedgerSuggestion) bool {
	if !accountFormat.MatchString(s.DebitAccount) || !accountFormat.MatchString(s.CreditAccount) {
		return false
	}
	switch s.AccountingCode {
	case CodeReceivedInvoice, CodeCashDocument:
		return true
	default:
		return false
	}
}

func itemText(doc *models.Document) string {
	names := make([]string, 0, len(doc.Items))
	for _, item := range doc.Items {
		names = append(names, item.Name)
	}
	return strings.Join(names, " ")
}
