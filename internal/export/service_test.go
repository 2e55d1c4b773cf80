package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"digiucto/internal/ledger"
	"digiucto/internal/pohoda"
	"digiucto/pkg/models"
)

type fakeStores struct {
	docUpdates []string
	txUpdates  []string
	failDoc    string
	failTx     string
}

func (f *fakeStores) CreateDocument(ctx context.Context, doc *models.Document) error { return nil }
func (f *fakeStores) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return nil, nil
}
func (f *fakeStores) ListDocumentsByStatus(ctx context.Context, ownerID string, statuses ...models.DocumentStatus) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeStores) FindDocumentsBySymbol(ctx context.Context, ownerID, symbol string) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeStores) UpdateDocument(ctx context.Context, doc *models.Document, expected models.DocumentStatus) error {
	if doc.ID == f.failDoc {
		return errors.New("update conflict")
	}
	f.docUpdates = append(f.docUpdates, doc.ID)
	return nil
}
func (f *fakeStores) DeleteDocument(ctx context.Context, id string) error { return nil }

func (f *fakeStores) CreateTransaction(ctx context.Context, tx *models.BankTransaction) error {
	return nil
}
func (f *fakeStores) GetTransaction(ctx context.Context, id string) (*models.BankTransaction, error) {
	return nil, nil
}
func (f *fakeStores) ListTransactionsByStatus(ctx context.Context, ownerID string, statuses ...models.TransactionStatus) ([]*models.BankTransaction, error) {
	return nil, nil
}
func (f *fakeStores) UpdateTransaction(ctx context.Context, tx *models.BankTransaction, expected models.TransactionStatus) error {
	if tx.ID == f.failTx {
		return errors.New("update conflict")
	}
	f.txUpdates = append(f.txUpdates, tx.ID)
	return nil
}
func (f *fakeStores) DeleteTransaction(ctx context.Context, id string) error { return nil }

func testService(stores *fakeStores) *Service {
	opts := pohoda.DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return NewService(pohoda.NewFormatter(opts), stores, stores)
}

func verifiedDoc(id string) *models.Document {
	return &models.Document{
		ID:             id,
		SupplierName:   "Benzina s.r.o.",
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

func TestExportDocuments(t *testing.T) {
	stores := &fakeStores{}
	service := testService(stores)
	docs := []*models.Document{verifiedDoc("doc-1"), verifiedDoc("doc-2")}

	xml, report, err := service.ExportDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("ExportDocuments() = %v", err)
	}
	if len(xml) == 0 {
		t.Fatal("no XML produced")
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("report = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}
	for _, doc := range docs {
		if doc.Status != models.StatusExported {
			t.Errorf("document %s status = %q, want exported", doc.ID, doc.Status)
		}
	}
	if len(stores.docUpdates) != 2 {
		t.Errorf("persisted %d updates, want 2", len(stores.docUpdates))
	}
}

func TestExportDocumentsFormatFailureAbortsBatch(t *testing.T) {
	stores := &fakeStores{}
	service := testService(stores)

	good := verifiedDoc("doc-1")
	bad := verifiedDoc("doc-2")
	bad.VAT21 = 5 // inconsistent buckets
	docs := []*models.Document{good, bad}

	xml, report, err := service.ExportDocuments(context.Background(), docs)
	if !errors.Is(err, pohoda.ErrFormat) {
		t.Fatalf("ExportDocuments() = %v, want ErrFormat", err)
	}
	if xml != nil || report != nil {
		t.Error("output produced despite formatting failure")
	}
	// No member may have transitioned.
	for _, doc := range docs {
		if doc.Status != models.StatusVerified {
			t.Errorf("document %s status = %q, batch must stay untouched", doc.ID, doc.Status)
		}
	}
	if len(stores.docUpdates) != 0 {
		t.Errorf("updates persisted despite formatting failure: %v", stores.docUpdates)
	}
}

func TestExportDocumentsPartialPersistFailure(t *testing.T) {
	stores := &fakeStores{failDoc: "doc-2"}
	service := testService(stores)
	docs := []*models.Document{verifiedDoc("doc-1"), verifiedDoc("doc-2"), verifiedDoc("doc-3")}

	xml, report, err := service.ExportDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("ExportDocuments() = %v", err)
	}
	if len(xml) == 0 {
		t.Fatal("no XML produced")
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %d/%d, want 2/1", report.Succeeded, report.Failed)
	}
	if _, ok := report.Errors["doc-2"]; !ok {
		t.Error("report does not name the failed member")
	}
}

func TestExportDocumentsHonorsCancellation(t *testing.T) {
	stores := &fakeStores{}
	service := testService(stores)
	docs := []*models.Document{verifiedDoc("doc-1")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := service.ExportDocuments(ctx, docs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExportDocuments() = %v, want context.Canceled", err)
	}
	if len(stores.docUpdates) != 0 {
		t.Error("updates persisted after cancellation")
	}
}

func TestExportTransactions(t *testing.T) {
	stores := &fakeStores{}
	service := testService(stores)
	txs := []*models.BankTransaction{
		{ID: "tx-1", Date: "2025-01-20", Amount: -500, Direction: models.DirectionOutgoing, Status: models.TransactionDraft},
		{ID: "tx-2", Date: "2025-01-21", Amount: 900, Direction: models.DirectionIncoming, Status: models.TransactionMatched},
	}

	xml, report, err := service.ExportTransactions(context.Background(), txs)
	if err != nil {
		t.Fatalf("ExportTransactions() = %v", err)
	}
	if len(xml) == 0 {
		t.Fatal("no XML produced")
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("report = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}
	for _, tx := range txs {
		if tx.Status != models.TransactionExported {
			t.Errorf("transaction %s status = %q, want exported", tx.ID, tx.Status)
		}
	}
}

func TestExportTransactionsFormatFailureAbortsBatch(t *testing.T) {
	stores := &fakeStores{}
	service := testService(stores)
	txs := []*models.BankTransaction{
		{ID: "tx-1", Date: "2025-01-20", Status: models.TransactionDraft},
		{ID: "tx-2", Status: models.TransactionDraft}, // no statement date
	}

	_, _, err := service.ExportTransactions(context.Background(), txs)
	if !errors.Is(err, pohoda.ErrFormat) {
		t.Fatalf("ExportTransactions() = %v, want ErrFormat", err)
	}
	if txs[0].Status != models.TransactionDraft {
		t.Error("first member transitioned despite batch failure")
	}
	if len(stores.txUpdates) != 0 {
		t.Error("updates persisted despite formatting failure")
	}
}
