package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

type catSet map[int]bool

func (s catSet) Exists(id int) bool { return s[id] }

func candidate(merchant string, amount string, categoryID int, include bool) *model.ImportCandidate {
	return &model.ImportCandidate{
		ID:                 uuid.New(),
		Source:             model.RowSource{Line: 2},
		SourceMerchantKey:  merchant,
		Merchant:           merchant,
		Date:               time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Amount:             decimal.RequireFromString(amount),
		Kind:               model.KindExpense,
		SelectedCategoryID: categoryID,
		IncludeInImport:    include,
	}
}

func TestCommit_AppendsIncludedOnly(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{2: true})

	written, err := svc.Commit("personal", []*model.ImportCandidate{
		candidate("COFFEE SHOP", "-3.50", 2, true),
		candidate("EXCLUDED", "-9.99", 2, false),
	})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "COFFEE SHOP", written[0].Merchant)

	entries, err := svc.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "-3.50", entries[0].Amount.StringFixed(2))
	assert.Equal(t, "personal", entries[0].Workspace)
}

func TestCommit_NothingIncluded(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{})

	written, err := svc.Commit("personal", []*model.ImportCandidate{
		candidate("X", "-1.00", 1, false),
	})
	require.NoError(t, err)
	assert.Nil(t, written)

	entries, err := svc.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestCommit_RejectsUnknownCategory(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{2: true})

	_, err := svc.Commit("personal", []*model.ImportCandidate{
		candidate("COFFEE SHOP", "-3.50", 99, true),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category 99")

	// Nothing is written on validation failure.
	entries, err := svc.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestCommit_SecondCommitAppends(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{2: true})

	_, err := svc.Commit("personal", []*model.ImportCandidate{
		candidate("FIRST", "-1.00", 2, true),
	})
	require.NoError(t, err)

	_, err = svc.Commit("personal", []*model.ImportCandidate{
		candidate("SECOND", "-2.00", 2, true),
	})
	require.NoError(t, err)

	entries, err := svc.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "FIRST", entries[0].Merchant)
	assert.Equal(t, "SECOND", entries[1].Merchant)
}

func TestContains(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{2: true})

	c := candidate("COFFEE SHOP", "-3.50", 2, true)
	_, err := svc.Commit("personal", []*model.ImportCandidate{c})
	require.NoError(t, err)

	found, err := svc.Contains(c.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = svc.Contains(uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadAll_MissingFile(t *testing.T) {
	svc := NewService(t.TempDir(), catSet{})
	entries, err := svc.ReadAll()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestEntryCSV_RoundTrip(t *testing.T) {
	entry := model.LedgerEntry{
		ID:          uuid.New(),
		Workspace:   "personal",
		Date:        time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Merchant:    "Trader Joe's",
		MerchantKey: "TRADER JOES #552",
		Amount:      decimal.RequireFromString("-42.10"),
		Kind:        model.KindExpense,
		CategoryID:  1,
		SourceLine:  7,
		ImportedAt:  time.Date(2025, 1, 4, 9, 30, 0, 0, time.UTC),
	}

	got, err := UnmarshalEntry(MarshalEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Merchant, got.Merchant)
	assert.True(t, entry.Amount.Equal(got.Amount))
	assert.Equal(t, entry.Kind, got.Kind)
	assert.Equal(t, entry.ImportedAt, got.ImportedAt)
}
