package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxnKind classifies a candidate row for totals purposes.
type TxnKind string

const (
	KindExpense TxnKind = "expense"
	KindIncome  TxnKind = "income"
	// KindPayment marks card-payment/transfer rows, which are excluded
	// from expense and income totals.
	KindPayment TxnKind = "payment"
)

// Bucket is the review-queue classification of a candidate row.
type Bucket string

const (
	BucketReady             Bucket = "ready"
	BucketPossibleMatch     Bucket = "possible-match"
	BucketPayment           Bucket = "payment"
	BucketPossibleDuplicate Bucket = "possible-duplicate"
	BucketNeedsMoreData     Bucket = "needs-more-data"
)

// RowSource is the immutable provenance of a candidate: what the CSV line
// actually said, before any normalization or editing.
type RowSource struct {
	Line           int // 1-based line number in the source file
	RawDate        string
	RawDescription string
	RawMerchant    string // empty when the export has no merchant column
	RawAmount      string
	RawCategory    string // empty when the export has no category column
}

// ImportCandidate is one proposed transaction derived from one CSV data
// line, pending user review before commit to the ledger.
type ImportCandidate struct {
	ID     uuid.UUID
	Source RowSource

	// Matching keys, set once at construction. Two keys exist because
	// merchant and description columns disagree across export formats;
	// rule lookup tries both.
	SourceMerchantKey      string
	DescriptionMerchantKey string

	// Proposed values, editable during review.
	Date     time.Time
	Merchant string
	Amount   decimal.Decimal // negative = expense, positive = income
	Kind     TxnKind

	// Matching outputs. The engine sets these; the caller may override.
	SuggestedCategoryID int // 0 = no suggestion
	Confidence          float64
	MatchReason         string

	// Review state.
	SelectedCategoryID int // 0 = none; independent of the suggestion
	RememberMapping    bool
	IncludeInImport    bool
	DuplicateHint      bool
	Bucket             Bucket
}

// MissingRequiredData reports whether the candidate lacks data required
// for commit: an empty merchant, or an expense with no category selected.
func (c ImportCandidate) MissingRequiredData() bool {
	if strings.TrimSpace(c.Merchant) == "" {
		return true
	}
	return c.Kind == KindExpense && c.SelectedCategoryID == 0
}
