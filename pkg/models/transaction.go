package models

import "time"

// TransactionDirection distinguishes incoming from outgoing bank movements.
type TransactionDirection string

const (
	DirectionIncoming TransactionDirection = "incoming"
	DirectionOutgoing TransactionDirection = "outgoing"
)

// TransactionStatus is the lifecycle state of a bank transaction.
type TransactionStatus string

const (
	TransactionDraft     TransactionStatus = "draft"
	TransactionMatched   TransactionStatus = "matched"
	TransactionExported  TransactionStatus = "exported"
	TransactionAccounted TransactionStatus = "accounted"
)

// BankTransaction is one movement from a bank statement. The signed amount
// and the explicit direction are stored together so neither convention is
// ambiguous on its own.
type BankTransaction struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CompanyID string `json:"company_id"`

	Date      string               `json:"date"` // YYYY-MM-DD
	Amount    float64              `json:"amount"`
	Direction TransactionDirection `json:"direction"`

	CounterpartyName    string `json:"counterparty_name"`
	CounterpartyAccount string `json:"counterparty_account"`
	Description         string `json:"description"`

	VariableSymbol string `json:"variable_symbol"`
	ConstantSymbol string `json:"constant_symbol"`
	SpecificSymbol string `json:"specific_symbol"`

	MatchedDocumentID string `json:"matched_document_id"`
	AutoMatched       bool   `json:"auto_matched"`

	Status TransactionStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	MatchedAt   *time.Time `json:"matched_at,omitempty"`
	ExportedAt  *time.Time `json:"exported_at,omitempty"`
	AccountedAt *time.Time `json:"accounted_at,omitempty"`
}

// IsIncoming reports whether the transaction is an incoming payment.
func (t *BankTransaction) IsIncoming() bool {
	return t.Direction == DirectionIncoming
}

// AbsAmount returns the absolute value of the transaction amount.
func (t *BankTransaction) AbsAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// Company is the buyer profile copied into documents at creation time.
// Exactly one company per user is active at a time.
type Company struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	ICO      string `json:"ico"`
	DIC      string `json:"dic"`
	Address  string `json:"address"`
	IsActive bool   `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
