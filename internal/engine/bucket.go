package engine

import (
	"strings"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// RecomputeBucket re-runs the bucket transition after any field change.
// It is idempotent: incomplete rows are forced out of the import,
// duplicate-hinted rows move to possible-duplicate, and everything else
// keeps its bucket so the review list stays stable while the user edits.
func RecomputeBucket(c *model.ImportCandidate) {
	if c.Bucket == "" {
		c.Bucket = model.BucketNeedsMoreData
	}

	if strings.TrimSpace(c.Merchant) == "" {
		c.IncludeInImport = false
		return
	}
	if c.Kind == model.KindExpense && c.SelectedCategoryID == 0 {
		c.IncludeInImport = false
		return
	}
	if c.DuplicateHint {
		c.Bucket = model.BucketPossibleDuplicate
		c.IncludeInImport = false
		return
	}
}
