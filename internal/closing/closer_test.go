package closing

import (
	"context"
	"errors"
	"testing"

	"digiucto/internal/lifecycle"
	"digiucto/internal/validation"
	"digiucto/pkg/models"
)

type fakeDocumentStore struct {
	updates []string
	failOn  string
}

func (f *fakeDocumentStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	return nil
}
func (f *fakeDocumentStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return nil, nil
}
func (f *fakeDocumentStore) ListDocumentsByStatus(ctx context.Context, ownerID string, statuses ...models.DocumentStatus) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeDocumentStore) FindDocumentsBySymbol(ctx context.Context, ownerID, symbol string) ([]*models.Document, error) {
	return nil, nil
}
func (f *fakeDocumentStore) UpdateDocument(ctx context.Context, doc *models.Document, expected models.DocumentStatus) error {
	if doc.ID == f.failOn {
		return errors.New("update conflict")
	}
	f.updates = append(f.updates, doc.ID)
	return nil
}
func (f *fakeDocumentStore) DeleteDocument(ctx context.Context, id string) error { return nil }

func exportedDoc(id, issueDate string) *models.Document {
	return &models.Document{
		ID:        id,
		IssueDate: issueDate,
		Status:    models.StatusExported,
	}
}

func TestClosePeriod(t *testing.T) {
	store := &fakeDocumentStore{}
	closer := NewCloser(store)
	docs := []*models.Document{
		exportedDoc("doc-1", "2025-02-10"),
		exportedDoc("doc-2", "2025-01-05"), // 55 days before March 1st
	}

	report, err := closer.ClosePeriod(context.Background(), docs, "2025-03")
	if err != nil {
		t.Fatalf("ClosePeriod() = %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("report = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}
	for _, doc := range docs {
		if doc.Status != models.StatusAccounted {
			t.Errorf("document %s status = %q, want accounted", doc.ID, doc.Status)
		}
		if doc.PostingMonth != "2025-03" {
			t.Errorf("document %s posting month = %q", doc.ID, doc.PostingMonth)
		}
	}
	if docs[0].PostedLate {
		t.Error("doc-1 flagged late for a 19-day gap")
	}
	if !docs[1].PostedLate {
		t.Error("doc-2 not flagged late for a 55-day gap")
	}
}

func TestClosePeriodInvalidMonthAbortsBeforeMutation(t *testing.T) {
	store := &fakeDocumentStore{}
	closer := NewCloser(store)
	docs := []*models.Document{exportedDoc("doc-1", "2025-02-10")}

	for _, month := range []string{"", "2025", "03-2025", "2025-3", "2025-03-01"} {
		report, err := closer.ClosePeriod(context.Background(), docs, month)
		if !errors.Is(err, validation.ErrInvalidFormat) {
			t.Errorf("ClosePeriod(%q) = %v, want ErrInvalidFormat", month, err)
		}
		if report != nil {
			t.Errorf("ClosePeriod(%q) produced a report for an invalid month", month)
		}
		if docs[0].Status != models.StatusExported {
			t.Errorf("document mutated on invalid month %q", month)
		}
	}
	if len(store.updates) != 0 {
		t.Errorf("updates persisted for invalid months: %v", store.updates)
	}
}

func TestClosePeriodSkipsWrongStatus(t *testing.T) {
	store := &fakeDocumentStore{}
	closer := NewCloser(store)
	verified := exportedDoc("doc-1", "2025-02-10")
	verified.Status = models.StatusVerified
	docs := []*models.Document{verified, exportedDoc("doc-2", "2025-02-11")}

	report, err := closer.ClosePeriod(context.Background(), docs, "2025-03")
	if err != nil {
		t.Fatalf("ClosePeriod() = %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	if !errors.Is(report.Errors["doc-1"], lifecycle.ErrInvalidState) {
		t.Errorf("doc-1 error = %v, want ErrInvalidState", report.Errors["doc-1"])
	}
	if verified.Status != models.StatusVerified {
		t.Errorf("verified document mutated to %q", verified.Status)
	}
}

func TestClosePeriodPersistFailureReported(t *testing.T) {
	store := &fakeDocumentStore{failOn: "doc-2"}
	closer := NewCloser(store)
	docs := []*models.Document{
		exportedDoc("doc-1", "2025-02-10"),
		exportedDoc("doc-2", "2025-02-11"),
		exportedDoc("doc-3", "2025-02-12"),
	}

	report, err := closer.ClosePeriod(context.Background(), docs, "2025-03")
	if err != nil {
		t.Fatalf("ClosePeriod() = %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("report = %d/%d, want 2/1", report.Succeeded, report.Failed)
	}
	if _, ok := report.Errors["doc-2"]; !ok {
		t.Error("report does not name the failed member")
	}
}

func TestClosePeriodHonorsCancellation(t *testing.T) {
	store := &fakeDocumentStore{}
	closer := NewCloser(store)
	docs := []*models.Document{exportedDoc("doc-1", "2025-02-10")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := closer.ClosePeriod(ctx, docs, "2025-03")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ClosePeriod() = %v, want context.Canceled", err)
	}
	if len(store.updates) != 0 {
		t.Error("updates persisted after cancellation")
	}
}
