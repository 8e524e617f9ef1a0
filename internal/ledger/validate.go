package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s]: %s", e.EntryID, e.Description)
}

// CategoryChecker tests whether a category ID exists in the workspace.
type CategoryChecker interface {
	Exists(id int) bool
}

// ValidateEntries enforces ledger invariants before anything is written:
// unique entry IDs, non-empty merchant keys, valid category references,
// a selected category on every expense, and amounts with at most two
// decimal places.
func ValidateEntries(entries []model.LedgerEntry, cats CategoryChecker) []ValidationError {
	var errs []ValidationError

	seen := make(map[uuid.UUID]bool, len(entries))
	hundred := decimal.NewFromInt(100)

	for _, entry := range entries {
		id := entry.ID.String()

		if seen[entry.ID] {
			errs = append(errs, ValidationError{
				EntryID:     id,
				Description: "duplicate entry ID",
			})
		}
		seen[entry.ID] = true

		if entry.MerchantKey == "" {
			errs = append(errs, ValidationError{
				EntryID:     id,
				Description: "empty merchant key",
			})
		}

		if entry.CategoryID != 0 && !cats.Exists(entry.CategoryID) {
			errs = append(errs, ValidationError{
				EntryID:     id,
				Description: fmt.Sprintf("unknown category %d", entry.CategoryID),
			})
		}

		if entry.Kind == model.KindExpense && entry.CategoryID == 0 {
			errs = append(errs, ValidationError{
				EntryID:     id,
				Description: "expense entry has no category",
			})
		}

		cents := entry.Amount.Mul(hundred)
		if !cents.Equal(cents.Floor()) {
			errs = append(errs, ValidationError{
				EntryID:     id,
				Description: fmt.Sprintf("amount %s has more than 2 decimal places", entry.Amount),
			})
		}
	}

	return errs
}
