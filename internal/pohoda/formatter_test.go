package pohoda

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"digiucto/internal/ledger"
	"digiucto/internal/lifecycle"
	"digiucto/pkg/models"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
}

func testFormatter() *Formatter {
	opts := DefaultOptions()
	opts.Now = fixedClock
	return NewFormatter(opts)
}

func verifiedDoc(id string) *models.Document {
	return &models.Document{
		ID:             id,
		BuyerICO:       "25596641",
		SupplierName:   "Benzina s.r.o.",
		SupplierICO:    "60193328",
		Type:           models.DocumentReceipt,
		PaymentMethod:  models.PaymentCash,
		DocumentNumber: "2025010042",
		IssueDate:      "2025-01-15",
		TotalAmount:    121,
		Base21:         100,
		VAT21:          21,
		Status:         models.StatusVerified,
		AccountingCode: ledger.CodeCashDocument,
		DebitAccount:   ledger.AccountMaterials,
		CreditAccount:  ledger.AccountCashRegister,
	}
}

// mustParse checks the output is well-formed XML.
func mustParse(t *testing.T, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("output is not well-formed XML: %v\n%s", err, data)
		}
	}
}

func TestFormatInvoices(t *testing.T) {
	f := testFormatter()
	out, err := f.FormatInvoices([]*models.Document{verifiedDoc("doc-1")})
	if err != nil {
		t.Fatalf("FormatInvoices() = %v", err)
	}
	mustParse(t, out)

	s := string(out)
	for _, want := range []string{
		`ico="25596641"`,
		`application="Digi-Uctenka"`,
		"<inv:invoiceType>receivedInvoice</inv:invoiceType>",
		"<inv:symVar>2025010042</inv:symVar>",
		"<inv:date>2025-01-15</inv:date>",
		"<inv:dateTax>2025-01-15</inv:dateTax>",
		"<inv:dateAccounting>2025-03-01</inv:dateAccounting>",
		"<typ:ids>UD</typ:ids>",
		"<typ:accountingMD>501</typ:accountingMD>",
		"<typ:accountingD>211</typ:accountingD>",
		"<typ:paymentType>cash</typ:paymentType>",
		"<typ:priceHigh>121</typ:priceHigh>",
		"<typ:priceHighVAT>21</typ:priceHighVAT>",
		"<typ:priceHighSum>100</typ:priceHighSum>",
		"<typ:priceNone>0</typ:priceNone>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFormatInvoicesEmptyBatch(t *testing.T) {
	f := testFormatter()
	if _, err := f.FormatInvoices(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("FormatInvoices(nil) = %v, want ErrEmptyBatch", err)
	}
}

func TestFormatInvoicesRejectsUnverified(t *testing.T) {
	f := testFormatter()
	doc := verifiedDoc("doc-1")
	doc.Status = models.StatusDraft
	_, err := f.FormatInvoices([]*models.Document{doc})
	if !errors.Is(err, lifecycle.ErrInvalidState) {
		t.Fatalf("FormatInvoices(draft) = %v, want ErrInvalidState", err)
	}
}

func TestFormatInvoicesAllOrNothing(t *testing.T) {
	f := testFormatter()
	good1 := verifiedDoc("doc-1")
	bad := verifiedDoc("doc-2")
	bad.VAT21 = 5 // buckets no longer sum to total
	good2 := verifiedDoc("doc-3")

	out, err := f.FormatInvoices([]*models.Document{good1, bad, good2})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("FormatInvoices() = %v, want ErrFormat", err)
	}
	if out != nil {
		t.Error("partial output produced for a failed batch")
	}
	if !strings.Contains(err.Error(), "doc-2") {
		t.Errorf("error %q does not name the offending document", err)
	}
}

func TestFormatInvoicesDeterministic(t *testing.T) {
	f := testFormatter()
	docs := []*models.Document{verifiedDoc("doc-1"), verifiedDoc("doc-2")}

	first, err := f.FormatInvoices(docs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.FormatInvoices(docs)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two runs over identical input produced different output")
	}
}

func TestFormatInvoicesEscaping(t *testing.T) {
	f := testFormatter()
	doc := verifiedDoc("doc-1")
	doc.SupplierName = `Müller & synové <s.r.o.> "U Lípy"`

	out, err := f.FormatInvoices([]*models.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	mustParse(t, out)

	s := string(out)
	if !strings.Contains(s, "Müller &amp; synové &lt;s.r.o.&gt; &quot;U Lípy&quot;") {
		t.Errorf("supplier name not escaped:\n%s", s)
	}
	if strings.Contains(s, "<s.r.o.>") {
		t.Error("raw angle brackets leaked into markup")
	}
}

func TestFormatInvoicesAddressTruncation(t *testing.T) {
	f := testFormatter()
	doc := verifiedDoc("doc-1")
	doc.SupplierAddress = strings.Repeat("ě", 70)

	out, err := f.FormatInvoices([]*models.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<typ:street>"+strings.Repeat("ě", 64)+"</typ:street>") {
		t.Error("street not truncated to 64 characters, or multibyte runes were split")
	}
	mustParse(t, out)
}

func TestFormatInvoicesOmitsUncertainAccounting(t *testing.T) {
	f := testFormatter()

	for _, code := range []string{"", ledger.CodeUnknown} {
		doc := verifiedDoc("doc-1")
		doc.AccountingCode = code
		out, err := f.FormatInvoices([]*models.Document{doc})
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(out), "<inv:accounting>") {
			t.Errorf("accounting block emitted for code %q", code)
		}
	}
}

func TestFormatInvoicesInTransitPairing(t *testing.T) {
	doc := func() *models.Document {
		d := verifiedDoc("doc-1")
		d.PaymentMethod = models.PaymentCard
		d.CreditAccount = ledger.AccountInTransit
		return d
	}

	t.Run("enabled keeps 261", func(t *testing.T) {
		out, err := testFormatter().FormatInvoices([]*models.Document{doc()})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(out), "<typ:accountingD>261</typ:accountingD>") {
			t.Error("in-transit account not kept with pairing enabled")
		}
	})

	t.Run("disabled rewrites to 221", func(t *testing.T) {
		opts := DefaultOptions()
		opts.InTransitPairing = false
		opts.Now = fixedClock
		out, err := NewFormatter(opts).FormatInvoices([]*models.Document{doc()})
		if err != nil {
			t.Fatal(err)
		}
		s := string(out)
		if !strings.Contains(s, "<typ:accountingD>221</typ:accountingD>") {
			t.Error("credit account not rewritten to the bank account")
		}
		if strings.Contains(s, "<typ:accountingD>261</typ:accountingD>") {
			t.Error("in-transit account leaked with pairing disabled")
		}
	})

	t.Run("disabled leaves other accounts alone", func(t *testing.T) {
		opts := DefaultOptions()
		opts.InTransitPairing = false
		opts.Now = fixedClock
		d := verifiedDoc("doc-1") // credits the cash register
		out, err := NewFormatter(opts).FormatInvoices([]*models.Document{d})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(out), "<typ:accountingD>211</typ:accountingD>") {
			t.Error("unrelated credit account was rewritten")
		}
	})
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"2025010042", "2025010042"},
		{"FA-2025/0042", "20250042"},
		{"ABC", ""},
		{"", ""},
		{"123456789012345678901234", "12345678901234567890"},
	}
	for _, tt := range tests {
		if got := NormalizeSymbol(tt.number); got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.number, got, tt.want)
		}
	}
}

func TestInvoiceType(t *testing.T) {
	tests := []struct {
		typ  models.DocumentType
		want string
	}{
		{models.DocumentReceivedInvoice, "receivedInvoice"},
		{models.DocumentReceipt, "receivedInvoice"},
		{models.DocumentTaxDocument, "receivedInvoice"},
		{models.DocumentIssuedInvoice, "issuedInvoice"},
		{models.DocumentAdvanceInvoice, "receivedAdvanceInvoice"},
		{models.DocumentCreditNote, "receivedCreditNotice"},
	}
	for _, tt := range tests {
		if got := invoiceType(tt.typ); got != tt.want {
			t.Errorf("invoiceType(%q) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestPaymentType(t *testing.T) {
	tests := []struct {
		method models.PaymentMethod
		want   string
	}{
		{models.PaymentCash, "cash"},
		{models.PaymentCard, "creditcard"},
		{models.PaymentTransfer, "draft"},
		{models.PaymentOther, "draft"},
		{models.PaymentUnknown, "draft"},
		{"", "draft"},
	}
	for _, tt := range tests {
		if got := paymentType(tt.method); got != tt.want {
			t.Errorf("paymentType(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{121, "121"},
		{121.5, "121.5"},
		{0, "0"},
		{0.01, "0.01"},
	}
	for _, tt := range tests {
		if got := amount(tt.v); got != tt.want {
			t.Errorf("amount(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFormatInvoicesItems(t *testing.T) {
	f := testFormatter()
	doc := verifiedDoc("doc-1")
	doc.Items = []models.LineItem{
		{Name: "Natural 95", Quantity: 30.5, Unit: "l", UnitPrice: 39.9, TaxBase: 100, VATRate: 21, VATAmount: 21, TotalWithVAT: 121},
	}

	out, err := f.FormatInvoices([]*models.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	mustParse(t, out)

	s := string(out)
	for _, want := range []string{
		"<inv:invoiceDetail>",
		"<inv:text>Natural 95</inv:text>",
		"<inv:quantity>30.5</inv:quantity>",
		"<inv:rateVAT>high</inv:rateVAT>",
		"<typ:priceSum>121</typ:priceSum>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
