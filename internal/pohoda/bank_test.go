package pohoda

import (
	"errors"
	"strings"
	"testing"

	"digiucto/pkg/models"
)

func draftTransaction(id string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:                  id,
		Date:                "2025-01-20",
		Amount:              -1210,
		Direction:           models.DirectionOutgoing,
		CounterpartyName:    "Benzina s.r.o.",
		CounterpartyAccount: "123456789/0100",
		Description:         "Platba kartou",
		VariableSymbol:      "2025010042",
		Status:              models.TransactionDraft,
	}
}

func TestFormatBankTransactions(t *testing.T) {
	f := testFormatter()
	out, err := f.FormatBankTransactions([]*models.BankTransaction{draftTransaction("tx-1")})
	if err != nil {
		t.Fatalf("FormatBankTransactions() = %v", err)
	}
	mustParse(t, out)

	s := string(out)
	for _, want := range []string{
		"<bnk:bankType>issue</bnk:bankType>",
		"<typ:statementNumber>20250120</typ:statementNumber>",
		"<bnk:symVar>2025010042</bnk:symVar>",
		"<bnk:dateStatement>2025-01-20</bnk:dateStatement>",
		"<bnk:datePayment>2025-01-20</bnk:datePayment>",
		"<bnk:text>Platba kartou</bnk:text>",
		"<typ:accountNo>123456789/0100</typ:accountNo>",
		"<typ:price>1210</typ:price>", // absolute value of the signed amount
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFormatBankTransactionsIncoming(t *testing.T) {
	f := testFormatter()
	tx := draftTransaction("tx-1")
	tx.Amount = 5000
	tx.Direction = models.DirectionIncoming

	out, err := f.FormatBankTransactions([]*models.BankTransaction{tx})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if !strings.Contains(s, "<bnk:bankType>receipt</bnk:bankType>") {
		t.Error("incoming transaction not marked as receipt")
	}
	if !strings.Contains(s, "<typ:price>5000</typ:price>") {
		t.Error("incoming amount not emitted")
	}
}

func TestFormatBankTransactionsEmptyBatch(t *testing.T) {
	f := testFormatter()
	if _, err := f.FormatBankTransactions(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("FormatBankTransactions(nil) = %v, want ErrEmptyBatch", err)
	}
}

func TestFormatBankTransactionsRejectsAccounted(t *testing.T) {
	f := testFormatter()
	good := draftTransaction("tx-1")
	bad := draftTransaction("tx-2")
	bad.Status = models.TransactionAccounted

	out, err := f.FormatBankTransactions([]*models.BankTransaction{good, bad})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("FormatBankTransactions() = %v, want ErrFormat", err)
	}
	if out != nil {
		t.Error("partial output produced for a failed batch")
	}
}

func TestFormatBankTransactionsRejectsMissingDate(t *testing.T) {
	f := testFormatter()
	tx := draftTransaction("tx-1")
	tx.Date = ""

	if _, err := f.FormatBankTransactions([]*models.BankTransaction{tx}); !errors.Is(err, ErrFormat) {
		t.Fatalf("FormatBankTransactions() = %v, want ErrFormat", err)
	}
}

func TestFormatBankTransactionsOrderPreserved(t *testing.T) {
	f := testFormatter()
	first := draftTransaction("tx-1")
	first.Description = "Prvni pohyb"
	second := draftTransaction("tx-2")
	second.Description = "Druhy pohyb"

	out, err := f.FormatBankTransactions([]*models.BankTransaction{first, second})
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	if strings.Index(s, "Prvni pohyb") > strings.Index(s, "Druhy pohyb") {
		t.Error("output does not preserve input order")
	}
}
