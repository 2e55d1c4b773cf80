package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"digiucto/pkg/models"
)

// Common validation errors
var (
	// ErrInvalidFormat is returned when a value does not match the expected
	// shape (digit count, prefix, date layout).
	ErrInvalidFormat = errors.New("invalid format")

	// ErrChecksumMismatch is returned when an ICO is well-formed but its
	// modulo-11 check digit disagrees.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrAmountOutOfRange is returned for non-positive amounts or amounts
	// above the sanity ceiling.
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrDateOutOfRange is returned for dates in the future or more than
	// ten years in the past.
	ErrDateOutOfRange = errors.New("date out of range")
)

// MaxAmount is the sanity ceiling for document amounts.
const MaxAmount = 100_000_000

// icoWeights are the modulo-11 checksum weights over the first 7 digits.
var icoWeights = [7]int{8, 7, 6, 5, 4, 3, 2}

var (
	nonDigits  = regexp.MustCompile(`\D`)
	isoDate    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dottedDate = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})$`)
	slashDate  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
	allDigits  = regexp.MustCompile(`^\d+$`)
)

// ValidateICO checks a Czech company registration number. Non-digit
// characters are stripped first; the remaining string must be exactly
// 8 digits with a valid modulo-11 check digit.
func ValidateICO(ico string) error {
	digits := nonDigits.ReplaceAllString(ico, "")
	if len(digits) != 8 {
		return fmt.Errorf("ICO must have 8 digits: %w", ErrInvalidFormat)
	}

	sum := 0
	for i := 0; i < 7; i++ {
		sum += int(digits[i]-'0') * icoWeights[i]
	}
	remainder := sum % 11
	checkDigit := 11 - remainder
	switch remainder {
	case 0:
		checkDigit = 1
	case 1:
		checkDigit = 0
	}

	if int(digits[7]-'0') != checkDigit {
		return fmt.Errorf("ICO check digit does not match: %w", ErrChecksumMismatch)
	}
	return nil
}

// ValidateDIC checks a Czech VAT identifier: "CZ" prefix followed by
// 8 to 10 digits.
func ValidateDIC(dic string) error {
	clean := strings.ToUpper(strings.ReplaceAll(dic, " ", ""))
	if !strings.HasPrefix(clean, "CZ") {
		return fmt.Errorf("DIC must start with CZ: %w", ErrInvalidFormat)
	}
	digits := clean[2:]
	if len(digits) < 8 || len(digits) > 10 {
		return fmt.Errorf("DIC must have 8-10 digits after CZ: %w", ErrInvalidFormat)
	}
	if !allDigits.MatchString(digits) {
		return fmt.Errorf("DIC may contain digits only after CZ: %w", ErrInvalidFormat)
	}
	return nil
}

// ValidateAmount checks that an amount is a positive finite number below
// the sanity ceiling.
func ValidateAmount(amount float64) error {
	if amount != amount || amount <= 0 { // NaN or non-positive
		return fmt.Errorf("amount must be a positive number: %w", ErrAmountOutOfRange)
	}
	if amount > MaxAmount {
		return fmt.Errorf("amount exceeds %d: %w", MaxAmount, ErrAmountOutOfRange)
	}
	return nil
}

// ValidateDate checks a strict YYYY-MM-DD date that is neither in the
// future nor more than ten years in the past.
func ValidateDate(date string) error {
	return validateDateAt(date, time.Now())
}

func validateDateAt(date string, now time.Time) error {
	if !isoDate.MatchString(date) {
		return fmt.Errorf("date must be YYYY-MM-DD: %w", ErrInvalidFormat)
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Errorf("invalid date: %w", ErrInvalidFormat)
	}
	if parsed.After(now) {
		return fmt.Errorf("date must not be in the future: %w", ErrDateOutOfRange)
	}
	if parsed.Before(now.AddDate(-10, 0, 0)) {
		return fmt.Errorf("date is too old (max 10 years back): %w", ErrDateOutOfRange)
	}
	return nil
}

// NormalizeDate rewrites YYYY-MM-DD, DD.MM.YYYY and DD/MM/YYYY inputs to
// YYYY-MM-DD. Anything else falls back to the current date; callers that
// cannot tolerate the lossy fallback should check with ValidateDate first.
// TODO: surface an "unparsed" sentinel instead of today so bad extractor
// output cannot shift a document into the wrong VAT period.
func NormalizeDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if isoDate.MatchString(trimmed) {
		return trimmed
	}
	if m := dottedDate.FindStringSubmatch(trimmed); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
	}
	if m := slashDate.FindStringSubmatch(trimmed); m != nil {
		return fmt.Sprintf("%s-%s-%s", m[3], m[2], m[1])
	}
	return time.Now().Format("2006-01-02")
}

// CleanICO strips non-digits and left-pads to 8 digits. Empty input stays
// empty.
func CleanICO(ico string) string {
	if ico == "" {
		return ""
	}
	digits := nonDigits.ReplaceAllString(ico, "")
	for len(digits) < 8 {
		digits = "0" + digits
	}
	return digits[:8]
}

// CleanDIC uppercases, strips spaces and ensures the CZ prefix.
func CleanDIC(dic string) string {
	if dic == "" {
		return ""
	}
	clean := strings.ToUpper(strings.ReplaceAll(dic, " ", ""))
	if !strings.HasPrefix(clean, "CZ") {
		clean = "CZ" + nonDigits.ReplaceAllString(clean, "")
	}
	return clean
}

// FieldErrors maps field names to validation messages. Validation collects
// every failing field instead of stopping at the first one.
type FieldErrors map[string]string

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	return fmt.Sprintf("validation failed for fields: %s", strings.Join(fields, ", "))
}

// ValidateDocumentForm runs the field-level checks required before a draft
// document may be verified. It returns nil when the document passes.
func ValidateDocumentForm(doc *models.Document) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(doc.SupplierName) == "" {
		errs["supplier_name"] = "supplier name is required"
	}
	if doc.SupplierICO != "" {
		if err := ValidateICO(doc.SupplierICO); err != nil {
			errs["supplier_ico"] = err.Error()
		}
	}
	if doc.SupplierDIC != "" {
		if err := ValidateDIC(doc.SupplierDIC); err != nil {
			errs["supplier_dic"] = err.Error()
		}
	}
	if strings.TrimSpace(doc.DocumentNumber) == "" {
		errs["document_number"] = "document number is required"
	}
	if err := ValidateDate(doc.IssueDate); err != nil {
		errs["issue_date"] = err.Error()
	}
	if err := ValidateDate(doc.EffectiveTaxDate()); err != nil {
		errs["tax_date"] = err.Error()
	}
	if doc.DueDate != "" {
		if !isoDate.MatchString(doc.DueDate) {
			errs["due_date"] = "date must be YYYY-MM-DD"
		}
	}
	if err := ValidateAmount(doc.TotalAmount); err != nil {
		errs["total_amount"] = err.Error()
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
