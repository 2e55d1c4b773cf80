package lifecycle

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"digiucto/internal/validation"
	"digiucto/pkg/models"
)

// Lifecycle errors
var (
	// ErrInvalidState is returned when a transition is attempted from a
	// state that does not permit it. Transitions never skip states and
	// never move backward.
	ErrInvalidState = errors.New("invalid document state for transition")

	// ErrImmutable is returned when an accounted document would be
	// mutated or deleted. Corrections to accounted documents happen
	// through corrective documents, not in place.
	ErrImmutable = errors.New("accounted document is immutable")

	// ErrInconsistentAmounts is returned when VAT buckets or line items
	// do not sum to the document total within the rounding tolerance.
	ErrInconsistentAmounts = errors.New("document amounts are inconsistent")
)

// lateThreshold is the number of days between issue and posting-month
// start above which a posting counts as late.
const lateThreshold = 30 * 24 * time.Hour

var postingMonthFormat = regexp.MustCompile(`^\d{4}-\d{2}$`)

// TransitionError carries the attempted transition for error reporting.
type TransitionError struct {
	From models.DocumentStatus
	To   models.DocumentStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition document from %q to %q", e.From, e.To)
}

// Unwrap makes the error match ErrInvalidState.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidState
}

// Verify moves a draft document to verified. The document must pass form
// validation and its VAT buckets and line items must sum to the total.
func Verify(doc *models.Document, now time.Time) error {
	const op = "Verify"

	if doc.Status != models.StatusDraft {
		return fmt.Errorf("%s: %w", op, &TransitionError{From: doc.Status, To: models.StatusVerified})
	}
	if errs := validation.ValidateDocumentForm(doc); errs != nil {
		return fmt.Errorf("%s: %w", op, errs)
	}
	if !doc.VATBucketsConsistent() {
		return fmt.Errorf("%s: VAT buckets sum to %.2f, total is %.2f: %w",
			op, doc.VATBucketSum(), doc.TotalAmount, ErrInconsistentAmounts)
	}
	if !doc.ItemsConsistent() {
		return fmt.Errorf("%s: line items do not sum to total %.2f: %w",
			op, doc.TotalAmount, ErrInconsistentAmounts)
	}

	doc.Status = models.StatusVerified
	doc.VerifiedAt = &now
	return nil
}

// MarkExported moves a verified document to exported. Callers invoke it
// only after the export formatter produced output for the whole batch.
func MarkExported(doc *models.Document, now time.Time) error {
	const op = "MarkExported"

	if doc.Status != models.StatusVerified {
		return fmt.Errorf("%s: %w", op, &TransitionError{From: doc.Status, To: models.StatusExported})
	}
	doc.Status = models.StatusExported
	doc.ExportedAt = &now
	return nil
}

// MarkAccounted moves an exported document to accounted, stamping the
// posting month and the late-posting flag. postingMonth must be YYYY-MM.
func MarkAccounted(doc *models.Document, postingMonth string, now time.Time) error {
	const op = "MarkAccounted"

	if doc.Status != models.StatusExported {
		return fmt.Errorf("%s: %w", op, &TransitionError{From: doc.Status, To: models.StatusAccounted})
	}
	late, err := PostedLate(doc.IssueDate, postingMonth)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	doc.Status = models.StatusAccounted
	doc.PostingMonth = postingMonth
	doc.PostedLate = late
	doc.AccountedAt = &now
	return nil
}

// PostedLate reports whether posting an issueDate document into
// postingMonth counts as late: the month start must be more than 30 days
// after the issue date (strictly greater, 30 days exactly is on time).
func PostedLate(issueDate, postingMonth string) (bool, error) {
	if !postingMonthFormat.MatchString(postingMonth) {
		return false, fmt.Errorf("posting month must be YYYY-MM, got %q: %w", postingMonth, validation.ErrInvalidFormat)
	}
	monthStart, err := time.Parse("2006-01-02", postingMonth+"-01")
	if err != nil {
		return false, fmt.Errorf("invalid posting month %q: %w", postingMonth, validation.ErrInvalidFormat)
	}
	issued, err := time.Parse("2006-01-02", issueDate)
	if err != nil {
		return false, fmt.Errorf("invalid issue date %q: %w", issueDate, validation.ErrInvalidFormat)
	}
	return monthStart.Sub(issued) > lateThreshold, nil
}

// EnsureDeletable checks the deletion precondition: documents may be
// deleted from any state before accounting, never after.
func EnsureDeletable(doc *models.Document) error {
	if doc.Status == models.StatusAccounted {
		return fmt.Errorf("document %s: %w", doc.ID, ErrImmutable)
	}
	return nil
}

// MarkTransactionExported moves a matched or draft bank transaction to
// exported. Draft transactions are exportable: unmatched statement lines
// still import into the accounting system.
func MarkTransactionExported(tx *models.BankTransaction, now time.Time) error {
	const op = "MarkTransactionExported"

	if tx.Status != models.TransactionDraft && tx.Status != models.TransactionMatched {
		return fmt.Errorf("%s: cannot transition transaction from %q to %q: %w",
			op, tx.Status, models.TransactionExported, ErrInvalidState)
	}
	tx.Status = models.TransactionExported
	tx.ExportedAt = &now
	return nil
}
