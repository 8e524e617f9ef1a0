package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// defaultWindow is how far apart two transaction dates may be while still
// counting as the same transaction posted on different days.
const defaultWindow = 3 * 24 * time.Hour

// Index answers duplicate-hint lookups against committed ledger entries.
// A candidate is a likely duplicate when an entry with the same amount
// and merchant key has a date within the window. Implements the engine's
// DuplicateHinter.
type Index struct {
	byKey  map[string][]time.Time
	window time.Duration
}

// NewIndex builds an Index over entries with the default date window.
func NewIndex(entries []model.LedgerEntry) *Index {
	ix := &Index{
		byKey:  make(map[string][]time.Time),
		window: defaultWindow,
	}
	for _, entry := range entries {
		k := indexKey(entry.Amount, entry.MerchantKey)
		ix.byKey[k] = append(ix.byKey[k], entry.Date)
	}
	return ix
}

// Hint reports whether a candidate likely duplicates a ledger entry.
func (ix *Index) Hint(date time.Time, amount decimal.Decimal, merchantKey string) bool {
	for _, seen := range ix.byKey[indexKey(amount, merchantKey)] {
		delta := date.Sub(seen)
		if delta < 0 {
			delta = -delta
		}
		if delta <= ix.window {
			return true
		}
	}
	return false
}

func indexKey(amount decimal.Decimal, merchantKey string) string {
	return amount.StringFixed(2) + "|" + merchantKey
}
