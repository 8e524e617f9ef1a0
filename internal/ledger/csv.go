// Package ledger persists committed transactions to ledger.csv and
// answers duplicate lookups against them.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Header is the CSV header for ledger.csv.
const Header = "entry_id,workspace,date,merchant,merchant_key,amount,kind,category_id,source_line,imported_at"

const (
	numFields     = 10
	dateFormat    = "2006-01-02"
	colEntryID    = 0
	colWorkspace  = 1
	colDate       = 2
	colMerchant   = 3
	colKey        = 4
	colAmount     = 5
	colKind       = 6
	colCategory   = 7
	colSourceLine = 8
	colImportedAt = 9
)

// ReadEntries reads all entries from a ledger.csv reader.
func ReadEntries(r io.Reader) ([]model.LedgerEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var entries []model.LedgerEntry
	for i, rec := range records[1:] {
		entry, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WriteEntries writes entries to a ledger.csv writer (including header).
func WriteEntries(w io.Writer, entries []model.LedgerEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, entry := range entries {
		if err := cw.Write(MarshalEntry(entry)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// AppendEntries appends entries to an existing ledger.csv writer (no header).
func AppendEntries(w io.Writer, entries []model.LedgerEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, entry := range entries {
		if err := cw.Write(MarshalEntry(entry)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	return cw.Error()
}

// MarshalEntry converts a LedgerEntry to a CSV row.
func MarshalEntry(entry model.LedgerEntry) []string {
	row := make([]string, numFields)
	row[colEntryID] = entry.ID.String()
	row[colWorkspace] = entry.Workspace
	row[colDate] = entry.Date.Format(dateFormat)
	row[colMerchant] = entry.Merchant
	row[colKey] = entry.MerchantKey
	row[colAmount] = entry.Amount.StringFixed(2)
	row[colKind] = string(entry.Kind)
	if entry.CategoryID != 0 {
		row[colCategory] = strconv.Itoa(entry.CategoryID)
	}
	if entry.SourceLine != 0 {
		row[colSourceLine] = strconv.Itoa(entry.SourceLine)
	}
	row[colImportedAt] = entry.ImportedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalEntry converts a CSV row to a LedgerEntry.
func UnmarshalEntry(record []string) (model.LedgerEntry, error) {
	if len(record) != numFields {
		return model.LedgerEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := uuid.Parse(record[colEntryID])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing entry_id %q: %w", record[colEntryID], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var categoryID int
	if record[colCategory] != "" {
		categoryID, err = strconv.Atoi(record[colCategory])
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("parsing category_id %q: %w", record[colCategory], err)
		}
	}

	var sourceLine int
	if record[colSourceLine] != "" {
		sourceLine, err = strconv.Atoi(record[colSourceLine])
		if err != nil {
			return model.LedgerEntry{}, fmt.Errorf("parsing source_line %q: %w", record[colSourceLine], err)
		}
	}

	importedAt, err := time.Parse(time.RFC3339, record[colImportedAt])
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("parsing imported_at %q: %w", record[colImportedAt], err)
	}

	return model.LedgerEntry{
		ID:          id,
		Workspace:   record[colWorkspace],
		Date:        date,
		Merchant:    record[colMerchant],
		MerchantKey: record[colKey],
		Amount:      amount,
		Kind:        model.TxnKind(record[colKind]),
		CategoryID:  categoryID,
		SourceLine:  sourceLine,
		ImportedAt:  importedAt,
	}, nil
}
