package closing

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"digiucto/internal/lifecycle"
	"digiucto/internal/logger"
	"digiucto/internal/validation"
	"digiucto/pkg/models"
	"digiucto/pkg/services"
)

var postingMonthFormat = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Report lists the per-member outcome of a period close.
type Report struct {
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// Closer marks exported documents as posted to an accounting month,
// flagging late postings.
type Closer struct {
	documents services.DocumentStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewCloser creates a period closer over the document store.
func NewCloser(documents services.DocumentStore) *Closer {
	return &Closer{
		documents: documents,
		now:       time.Now,
		log:       logger.WithComponent("period-closer"),
	}
}

// ClosePeriod transitions the documents to accounted under the given
// posting month (YYYY-MM). The month format is validated before any
// member is touched; an invalid month aborts the whole batch.
func (c *Closer) ClosePeriod(ctx context.Context, docs []*models.Document, postingMonth string) (*Report, error) {
	const op = "ClosePeriod"

	if !postingMonthFormat.MatchString(postingMonth) {
		return nil, fmt.Errorf("%s: posting month must be YYYY-MM, got %q: %w",
			op, postingMonth, validation.ErrInvalidFormat)
	}

	c.log.Info().
		Str("posting_month", postingMonth).
		Int("documents", len(docs)).
		Msg("Closing accounting period")

	report := &Report{Errors: map[string]error{}}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%s: canceled after %d documents: %w", op, report.Succeeded, err)
		}

		if err := lifecycle.MarkAccounted(doc, postingMonth, c.now()); err != nil {
			report.Failed++
			report.Errors[doc.ID] = err
			continue
		}
		if err := c.documents.UpdateDocument(ctx, doc, models.StatusExported); err != nil {
			report.Failed++
			report.Errors[doc.ID] = err
			continue
		}

		if doc.PostedLate {
			c.log.Warn().
				Str("document_id", doc.ID).
				Str("issue_date", doc.IssueDate).
				Str("posting_month", postingMonth).
				Msg("Document posted late")
		}
		report.Succeeded++
	}

	c.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Str("posting_month", postingMonth).
		Msg("Period close finished")
	return report, nil
}
