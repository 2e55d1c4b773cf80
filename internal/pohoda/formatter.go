package pohoda

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"digiucto/internal/ledger"
	"digiucto/internal/lifecycle"
	"digiucto/internal/logger"
	"digiucto/pkg/models"
)

// Formatter errors
var (
	// ErrFormat is returned when a batch member carries inconsistent
	// amounts. The whole batch is aborted; no partial output is produced.
	ErrFormat = errors.New("export formatting failed")

	// ErrEmptyBatch is returned for an empty input list.
	ErrEmptyBatch = errors.New("export batch is empty")
)

// maxAddressLength is the partner street field limit in the target schema.
const maxAddressLength = 64

// maxSymbolLength is the variable symbol length limit in the target schema.
const maxSymbolLength = 20

// Options configure the formatter.
type Options struct {
	// Application is reported in the data pack envelope.
	Application string

	// InTransitPairing keeps card payments on the in-transit funds
	// account 261 (settled by a second posting outside this pipeline).
	// When disabled the emitted credit account is rewritten to the bank
	// account 221 so card payments book in a single posting.
	InTransitPairing bool

	// Now supplies the accounting date stamped on each record.
	// Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production configuration.
func DefaultOptions() Options {
	return Options{
		Application:      "Digi-Uctenka",
		InTransitPairing: true,
	}
}

// Formatter serializes verified documents and bank transactions into the
// Pohoda XML exchange format (https://www.stormware.cz/pohoda/xml/).
// Output is deterministic given identical input order; the formatter never
// reorders, dedups or merges.
type Formatter struct {
	opts Options
	log  zerolog.Logger
}

// NewFormatter creates a formatter with the given options.
func NewFormatter(opts Options) *Formatter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Application == "" {
		opts.Application = DefaultOptions().Application
	}
	return &Formatter{
		opts: opts,
		log:  logger.WithComponent("pohoda-formatter"),
	}
}

// FormatInvoices serializes a batch of verified documents. Every member
// must already be verified and carry consistent amounts; any violation
// aborts the whole batch before a single byte is produced.
func (f *Formatter) FormatInvoices(docs []*models.Document) ([]byte, error) {
	const op = "FormatInvoices"

	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyBatch)
	}
	for _, doc := range docs {
		if doc.Status != models.StatusVerified {
			return nil, fmt.Errorf("%s: document %s has status %q, want %q: %w",
				op, doc.ID, doc.Status, models.StatusVerified, lifecycle.ErrInvalidState)
		}
		if !doc.VATBucketsConsistent() {
			return nil, fmt.Errorf("%s: document %s VAT buckets sum to %.2f, total is %.2f: %w",
				op, doc.ID, doc.VATBucketSum(), doc.TotalAmount, ErrFormat)
		}
		if !doc.ItemsConsistent() {
			return nil, fmt.Errorf("%s: document %s line items do not sum to total %.2f: %w",
				op, doc.ID, doc.TotalAmount, ErrFormat)
		}
	}

	ico := docs[0].BuyerICO
	if ico == "" {
		ico = "00000000"
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<dat:dataPack id="Import_faktur" ico="%s" application="%s" version="2.0" note="Import faktur" xmlns:dat="http://www.stormware.cz/schema/version_2/data.xsd" xmlns:inv="http://www.stormware.cz/schema/version_2/invoice.xsd" xmlns:typ="http://www.stormware.cz/schema/version_2/type.xsd">`,
		escape(ico), escape(f.opts.Application))

	accountingDate := f.opts.Now().Format("2006-01-02")
	for i, doc := range docs {
		f.writeInvoice(&b, doc, i+1, accountingDate)
	}

	b.WriteString("\n</dat:dataPack>\n")

	f.log.Info().
		Int("documents", len(docs)).
		Int("bytes", b.Len()).
		Msg("Invoice export generated")
	return []byte(b.String()), nil
}

func (f *Formatter) writeInvoice(b *strings.Builder, doc *models.Document, dataID int, accountingDate string) {
	fmt.Fprintf(b, "\n  <dat:dataPackItem id=\"%d\" version=\"2.0\">\n", dataID)
	b.WriteString("    <inv:invoice version=\"2.0\">\n")
	b.WriteString("      <inv:invoiceHeader>\n")
	fmt.Fprintf(b, "        <inv:invoiceType>%s</inv:invoiceType>\n", invoiceType(doc.Type))
	b.WriteString("        <inv:number>\n")
	fmt.Fprintf(b, "          <typ:numberRequested>%s</typ:numberRequested>\n", escape(doc.DocumentNumber))
	b.WriteString("        </inv:number>\n")

	// The variable symbol is always derived from the document number:
	// the target system rejects letters and auto-generates a wrong
	// symbol when the element is omitted.
	fmt.Fprintf(b, "        <inv:symVar>%s</inv:symVar>\n", NormalizeSymbol(doc.DocumentNumber))
	if doc.ConstantSymbol != "" {
		fmt.Fprintf(b, "        <inv:symConst>%s</inv:symConst>\n", escape(doc.ConstantSymbol))
	}
	if doc.SpecificSymbol != "" {
		fmt.Fprintf(b, "        <inv:symSpec>%s</inv:symSpec>\n", escape(doc.SpecificSymbol))
	}

	fmt.Fprintf(b, "        <inv:date>%s</inv:date>\n", escape(doc.IssueDate))
	fmt.Fprintf(b, "        <inv:dateTax>%s</inv:dateTax>\n", escape(doc.EffectiveTaxDate()))
	if doc.DueDate != "" {
		fmt.Fprintf(b, "        <inv:dateDue>%s</inv:dateDue>\n", escape(doc.DueDate))
	}
	fmt.Fprintf(b, "        <inv:dateAccounting>%s</inv:dateAccounting>\n", accountingDate)

	if doc.AccountingCode != "" && doc.AccountingCode != ledger.CodeUnknown {
		b.WriteString("        <inv:accounting>\n")
		fmt.Fprintf(b, "          <typ:ids>%s</typ:ids>\n", escape(doc.AccountingCode))
		if doc.DebitAccount != "" {
			fmt.Fprintf(b, "          <typ:accountingMD>%s</typ:accountingMD>\n", escape(doc.DebitAccount))
		}
		if credit := f.creditAccount(doc); credit != "" {
			fmt.Fprintf(b, "          <typ:accountingD>%s</typ:accountingD>\n", escape(credit))
		}
		b.WriteString("        </inv:accounting>\n")
	}

	fmt.Fprintf(b, "        <inv:text>%s</inv:text>\n", escape(doc.SupplierName))
	b.WriteString("        <inv:partnerIdentity>\n")
	b.WriteString("          <typ:address>\n")
	fmt.Fprintf(b, "            <typ:company>%s</typ:company>\n", escape(doc.SupplierName))
	if doc.SupplierICO != "" {
		fmt.Fprintf(b, "            <typ:ico>%s</typ:ico>\n", escape(doc.SupplierICO))
	}
	if doc.SupplierDIC != "" {
		fmt.Fprintf(b, "            <typ:dic>%s</typ:dic>\n", escape(doc.SupplierDIC))
	}
	if doc.SupplierAddress != "" {
		fmt.Fprintf(b, "            <typ:street>%s</typ:street>\n", escape(truncate(doc.SupplierAddress, maxAddressLength)))
	}
	b.WriteString("          </typ:address>\n")
	b.WriteString("        </inv:partnerIdentity>\n")

	if doc.SupplierBankAccount != "" {
		b.WriteString("        <inv:account>\n")
		fmt.Fprintf(b, "          <typ:accountNo>%s</typ:accountNo>\n", escape(doc.SupplierBankAccount))
		b.WriteString("        </inv:account>\n")
	}

	b.WriteString("        <inv:paymentType>\n")
	fmt.Fprintf(b, "          <typ:paymentType>%s</typ:paymentType>\n", paymentType(doc.PaymentMethod))
	b.WriteString("        </inv:paymentType>\n")
	b.WriteString("      </inv:invoiceHeader>\n")

	if len(doc.Items) > 0 {
		b.WriteString("      <inv:invoiceDetail>\n")
		for _, item := range doc.Items {
			f.writeItem(b, item)
		}
		b.WriteString("      </inv:invoiceDetail>\n")
	}

	b.WriteString("      <inv:invoiceSummary>\n")
	b.WriteString("        <inv:homeCurrency>\n")
	fmt.Fprintf(b, "          <typ:priceNone>%s</typ:priceNone>\n", amount(doc.Base0))
	fmt.Fprintf(b, "          <typ:priceLow>%s</typ:priceLow>\n", amount(doc.Base12+doc.VAT12))
	fmt.Fprintf(b, "          <typ:priceLowVAT>%s</typ:priceLowVAT>\n", amount(doc.VAT12))
	fmt.Fprintf(b, "          <typ:priceLowSum>%s</typ:priceLowSum>\n", amount(doc.Base12))
	fmt.Fprintf(b, "          <typ:priceHigh>%s</typ:priceHigh>\n", amount(doc.Base21+doc.VAT21))
	fmt.Fprintf(b, "          <typ:priceHighVAT>%s</typ:priceHighVAT>\n", amount(doc.VAT21))
	fmt.Fprintf(b, "          <typ:priceHighSum>%s</typ:priceHighSum>\n", amount(doc.Base21))
	b.WriteString("          <typ:round>\n")
	b.WriteString("            <typ:priceRound>0</typ:priceRound>\n")
	b.WriteString("          </typ:round>\n")
	b.WriteString("        </inv:homeCurrency>\n")
	b.WriteString("      </inv:invoiceSummary>\n")
	b.WriteString("    </inv:invoice>\n")
	b.WriteString("  </dat:dataPackItem>")
}

func (f *Formatter) writeItem(b *strings.Builder, item models.LineItem) {
	b.WriteString("        <inv:invoiceItem>\n")
	fmt.Fprintf(b, "          <inv:text>%s</inv:text>\n", escape(item.Name))
	fmt.Fprintf(b, "          <inv:quantity>%s</inv:quantity>\n", amount(item.Quantity))
	fmt.Fprintf(b, "          <inv:unit>%s</inv:unit>\n", escape(item.Unit))
	fmt.Fprintf(b, "          <inv:rateVAT>%s</inv:rateVAT>\n", vatRate(item.VATRate))
	b.WriteString("          <inv:homeCurrency>\n")
	fmt.Fprintf(b, "            <typ:unitPrice>%s</typ:unitPrice>\n", amount(item.UnitPrice))
	fmt.Fprintf(b, "            <typ:price>%s</typ:price>\n", amount(item.TaxBase))
	fmt.Fprintf(b, "            <typ:priceVAT>%s</typ:priceVAT>\n", amount(item.VATAmount))
	fmt.Fprintf(b, "            <typ:priceSum>%s</typ:priceSum>\n", amount(item.TotalWithVAT))
	b.WriteString("          </inv:homeCurrency>\n")
	b.WriteString("        </inv:invoiceItem>\n")
}

// creditAccount applies the in-transit pairing option to the document's
// credit account.
func (f *Formatter) creditAccount(doc *models.Document) string {
	if !f.opts.InTransitPairing && doc.CreditAccount == ledger.AccountInTransit {
		return ledger.AccountBank
	}
	return doc.CreditAccount
}

// NormalizeSymbol derives the numeric variable symbol emitted in exports:
// non-digits are stripped and the result is truncated to the schema limit.
func NormalizeSymbol(documentNumber string) string {
	var digits strings.Builder
	for _, r := range documentNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	s := digits.String()
	if len(s) > maxSymbolLength {
		s = s[:maxSymbolLength]
	}
	return s
}

func invoiceType(t models.DocumentType) string {
	switch t {
	case models.DocumentIssuedInvoice:
		return "issuedInvoice"
	case models.DocumentAdvanceInvoice:
		return "receivedAdvanceInvoice"
	case models.DocumentCreditNote:
		return "receivedCreditNotice"
	default:
		return "receivedInvoice"
	}
}

func paymentType(m models.PaymentMethod) string {
	switch m {
	case models.PaymentCash:
		return "cash"
	case models.PaymentCard:
		return "creditcard"
	default:
		return "draft"
	}
}

func vatRate(rate int) string {
	switch rate {
	case 21:
		return "high"
	case 12:
		return "low"
	default:
		return "none"
	}
}

// amount renders a monetary value without trailing zeros, matching the
// target system's tolerant numeric parsing.
func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escape entity-escapes free text inserted into markup.
func escape(s string) string {
	return escaper.Replace(s)
}
