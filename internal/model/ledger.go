package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one committed transaction row in ledger.csv. Entries are
// permanent: candidates are transient review state, but a committed entry
// is the durable record the duplicate detector matches against.
type LedgerEntry struct {
	ID          uuid.UUID
	Workspace   string
	Date        time.Time
	Merchant    string
	MerchantKey string
	Amount      decimal.Decimal
	Kind        TxnKind
	CategoryID  int // 0 = none (income and payment rows)
	SourceLine  int // line in the import file this entry came from
	ImportedAt  time.Time
}
