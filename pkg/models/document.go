package models

import (
	"math"
	"time"
)

// DocumentType classifies an accounting source document.
type DocumentType string

const (
	DocumentReceivedInvoice DocumentType = "received_invoice"
	DocumentIssuedInvoice   DocumentType = "issued_invoice"
	DocumentReceipt         DocumentType = "receipt"
	DocumentTaxDocument     DocumentType = "tax_document"
	DocumentAdvanceInvoice  DocumentType = "advance_invoice"
	DocumentCreditNote      DocumentType = "credit_note"
)

// PaymentMethod is how the document was (or will be) settled.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "bank_transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentOther    PaymentMethod = "other"
	PaymentUnknown  PaymentMethod = "unknown"
)

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusVerified  DocumentStatus = "verified"
	StatusExported  DocumentStatus = "exported"
	StatusAccounted DocumentStatus = "accounted"
)

// AmountTolerance is the rounding tolerance (in currency units) applied when
// checking that VAT buckets and line items sum to the document total.
const AmountTolerance = 0.01

// LineItem is one line of a document.
type LineItem struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	UnitPrice    float64 `json:"unit_price"`
	TaxBase      float64 `json:"tax_base"`
	VATRate      int     `json:"vat_rate"` // 21, 12 or 0
	VATAmount    float64 `json:"vat_amount"`
	TotalWithVAT float64 `json:"total_with_vat"`
}

// Document is a single accounting source document (invoice, receipt, tax
// document) moving through the verification and export pipeline.
type Document struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	CompanyID string `json:"company_id"`

	// Buyer (own company profile, copied in at creation)
	BuyerName    string `json:"buyer_name"`
	BuyerICO     string `json:"buyer_ico"`
	BuyerDIC     string `json:"buyer_dic"`
	BuyerAddress string `json:"buyer_address"`

	// Supplier (often partially empty on receipts)
	SupplierName        string `json:"supplier_name"`
	SupplierICO         string `json:"supplier_ico"`
	SupplierDIC         string `json:"supplier_dic"`
	SupplierAddress     string `json:"supplier_address"`
	SupplierBankAccount string `json:"supplier_bank_account"`

	Type          DocumentType  `json:"type"`
	PaymentMethod PaymentMethod `json:"payment_method"`

	DocumentNumber string `json:"document_number"`
	VariableSymbol string `json:"variable_symbol"` // primary matching key
	ConstantSymbol string `json:"constant_symbol"`
	SpecificSymbol string `json:"specific_symbol"`

	IssueDate string `json:"issue_date"` // YYYY-MM-DD
	TaxDate   string `json:"tax_date"`   // defaults to IssueDate when absent
	DueDate   string `json:"due_date"`   // empty when settled at point of sale

	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`

	// VAT buckets by Czech rate tier; must sum to TotalAmount.
	Base21 float64 `json:"base_21"`
	VAT21  float64 `json:"vat_21"`
	Base12 float64 `json:"base_12"`
	VAT12  float64 `json:"vat_12"`
	Base0  float64 `json:"base_0"`

	Items []LineItem `json:"items,omitempty"`

	// Ledger posting fields. Empty accounts plus the uncertainty sentinel
	// code mean "needs human decision"; they are never defaulted silently.
	AccountingCode string `json:"accounting_code"`
	DebitAccount   string `json:"debit_account"`
	CreditAccount  string `json:"credit_account"`

	Status       DocumentStatus `json:"status"`
	PostingMonth string         `json:"posting_month"` // YYYY-MM, set at closing
	PostedLate   bool           `json:"posted_late"`

	ExtractionConfidence float64 `json:"extraction_confidence"`

	CreatedAt   time.Time  `json:"created_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	ExportedAt  *time.Time `json:"exported_at,omitempty"`
	AccountedAt *time.Time `json:"accounted_at,omitempty"`
}

// IsOpen reports whether the document is still in the working queue,
// i.e. not yet accounted.
func (d *Document) IsOpen() bool {
	return d.Status != StatusAccounted
}

// EffectiveTaxDate returns the tax point date, falling back to the issue date.
func (d *Document) EffectiveTaxDate() string {
	if d.TaxDate != "" {
		return d.TaxDate
	}
	return d.IssueDate
}

// VATBucketSum returns the sum of all VAT bucket bases and taxes.
func (d *Document) VATBucketSum() float64 {
	return d.Base21 + d.VAT21 + d.Base12 + d.VAT12 + d.Base0
}

// VATBucketsConsistent reports whether the VAT buckets sum to the document
// total within the rounding tolerance.
func (d *Document) VATBucketsConsistent() bool {
	return math.Abs(d.VATBucketSum()-d.TotalAmount) <= AmountTolerance
}

// ItemsConsistent reports whether the line items sum to the document total
// within the rounding tolerance. Documents without items pass trivially,
// receipts frequently carry only the summary amounts.
func (d *Document) ItemsConsistent() bool {
	if len(d.Items) == 0 {
		return true
	}
	var sum float64
	for _, it := range d.Items {
		sum += it.TotalWithVAT
	}
	return math.Abs(sum-d.TotalAmount) <= AmountTolerance
}
