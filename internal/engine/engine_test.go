package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/csvtable"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/rules"
)

// seqHinter answers Hint calls from a fixed per-row list.
type seqHinter struct {
	hints []bool
	calls int
}

func (h *seqHinter) Hint(time.Time, decimal.Decimal, string) bool {
	if h.calls >= len(h.hints) {
		return false
	}
	v := h.hints[h.calls]
	h.calls++
	return v
}

func mkTable(t *testing.T, text string) *csvtable.Table {
	t.Helper()
	tbl, err := csvtable.Read([]byte(text))
	require.NoError(t, err)
	return tbl
}

var usCols = ColumnMap{Date: "Date", Description: "Description", Amount: "Amount"}

func usDate(s string) (time.Time, error) { return time.Parse("01/02/2006", s) }

func defOpts() Options {
	opts := DefaultOptions()
	opts.ParseDate = usDate
	return opts
}

func TestBuild_NoRules(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, defOpts())
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,POS DEBIT AMAZON MKTPL WA 98109,-42.10\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, "AMAZON MKTPL", c.SourceMerchantKey)
	assert.Equal(t, "AMAZON MKTPL", c.Merchant)
	assert.Equal(t, model.KindExpense, c.Kind)
	assert.Equal(t, 0.0, c.Confidence)
	assert.Equal(t, ReasonNoMatch, c.MatchReason)
	assert.Equal(t, model.BucketNeedsMoreData, c.Bucket)
	assert.False(t, c.IncludeInImport, "expense without category must be excluded")
	assert.True(t, c.MissingRequiredData())
	assert.Equal(t, "-42.10", c.Amount.StringFixed(2))
	assert.Equal(t, 2025, c.Date.Year())
}

func TestBuild_RuleMatch(t *testing.T) {
	store := rules.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "personal", "AMAZON MKTPL", "Amazon", 8))

	e := New(store, nil, defOpts())
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,POS DEBIT AMAZON MKTPL WA 98109,-42.10\n")

	cands, err := e.Build(ctx, "personal", tbl, usCols)
	require.NoError(t, err)

	c := cands[0]
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, ReasonRuleMatch, c.MatchReason)
	assert.Equal(t, "Amazon", c.Merchant)
	assert.Equal(t, 8, c.SuggestedCategoryID)
	assert.Equal(t, 8, c.SelectedCategoryID)
	assert.Equal(t, model.BucketReady, c.Bucket)
	assert.True(t, c.IncludeInImport)
}

func TestBuild_RuleMatchWithoutPreferredName(t *testing.T) {
	store := rules.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "personal", "NETFLIX.COM", "", 3))

	e := New(store, nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,Netflix.com,-15.99\n")

	cands, err := e.Build(ctx, "personal", tbl, usCols)
	require.NoError(t, err)
	assert.Equal(t, "NETFLIX.COM", cands[0].Merchant)
}

func TestBuild_DescriptionKeyFallback(t *testing.T) {
	store := rules.NewMemoryStore()
	ctx := context.Background()
	// Rule learned from the description, while this export's merchant
	// column carries an unseen register string.
	require.NoError(t, store.Upsert(ctx, "personal", "SHELL OIL", "Shell", 4))

	e := New(store, nil, DefaultOptions())
	cols := ColumnMap{Date: "Date", Description: "Description", Merchant: "Merchant", Amount: "Amount"}
	tbl := mkTable(t, "Date,Description,Merchant,Amount\n01/03/2025,SHELL OIL,REG 7 TX 9912838,-30.00\n")

	cands, err := e.Build(ctx, "personal", tbl, cols)
	require.NoError(t, err)

	c := cands[0]
	assert.NotEqual(t, c.SourceMerchantKey, c.DescriptionMerchantKey)
	assert.Equal(t, 1.0, c.Confidence)
	assert.Equal(t, "Shell", c.Merchant)
}

func TestBuild_TwoIdenticalRowsGetDistinctIDs(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,COFFEE,-3.50\n01/03/2025,COFFEE,-3.50\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.NotEqual(t, cands[0].ID, cands[1].ID)
}

func TestBuild_PaymentClassification(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n01/05/2025,CHASE AUTOPAY PAYMENT THANK YOU,-250.00\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)

	c := cands[0]
	assert.Equal(t, model.KindPayment, c.Kind)
	assert.Equal(t, model.BucketPayment, c.Bucket)
	assert.True(t, c.IncludeInImport)
}

func TestBuild_IncomeFromPositiveAmount(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n01/05/2025,ACME PAYROLL,2500.00\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)

	c := cands[0]
	assert.Equal(t, model.KindIncome, c.Kind)
	// Income needs no category, so the row stays importable.
	assert.True(t, c.IncludeInImport)
}

func TestBuild_InvertSign(t *testing.T) {
	opts := DefaultOptions()
	opts.InvertSign = true
	e := New(rules.NewMemoryStore(), nil, opts)
	tbl := mkTable(t, "Date,Description,Amount\n01/05/2025,COFFEE,3.50\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)
	assert.Equal(t, "-3.50", cands[0].Amount.StringFixed(2))
	assert.Equal(t, model.KindExpense, cands[0].Kind)
}

func TestBuild_DuplicateHint(t *testing.T) {
	// Scenario: two identical rows, second flagged by the hinter.
	e := New(rules.NewMemoryStore(), &seqHinter{hints: []bool{false, true}}, DefaultOptions())
	tbl := mkTable(t, "name,amount\nCoffee,3.50\nCoffee,3.50\n")
	cols := ColumnMap{Date: "name", Description: "name", Amount: "amount"}

	cands, err := e.Build(context.Background(), "personal", tbl, cols)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.NotEqual(t, model.BucketPossibleDuplicate, cands[0].Bucket)
	assert.True(t, cands[0].IncludeInImport)

	assert.True(t, cands[1].DuplicateHint)
	assert.Equal(t, model.BucketPossibleDuplicate, cands[1].Bucket)
	assert.False(t, cands[1].IncludeInImport)
}

func TestBuild_ConfidenceThreshold(t *testing.T) {
	store := rules.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "personal", "GYM", "Gym", 7))

	// With a threshold above 1.0 even an exact match is only possible.
	e := New(store, nil, Options{ReadyThreshold: 1.1})
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,GYM,-40.00\n")

	cands, err := e.Build(ctx, "personal", tbl, usCols)
	require.NoError(t, err)
	assert.Equal(t, model.BucketPossibleMatch, cands[0].Bucket)
}

func TestBuild_ZeroThresholdIsHonored(t *testing.T) {
	// A configured threshold of zero means every row meets it; the engine
	// must not substitute the default.
	e := New(rules.NewMemoryStore(), nil, Options{ReadyThreshold: 0})
	tbl := mkTable(t, "Date,Description,Amount\n01/05/2025,ACME PAYROLL,2500.00\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)
	assert.Equal(t, model.BucketReady, cands[0].Bucket)
}

func TestBuild_RowOrderAndProvenance(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n\n01/03/2025,FIRST,-1.00\n\n01/04/2025,SECOND,-2.00\n")

	cands, err := e.Build(context.Background(), "personal", tbl, usCols)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "FIRST", cands[0].Source.RawDescription)
	assert.Equal(t, "SECOND", cands[1].Source.RawDescription)
	assert.Equal(t, 2, cands[0].Source.Line)
	assert.Equal(t, 4, cands[1].Source.Line)
}

func TestBuild_MissingRequiredColumn(t *testing.T) {
	e := New(rules.NewMemoryStore(), nil, DefaultOptions())
	tbl := mkTable(t, "Date,Description,Amount\n01/03/2025,X,-1.00\n")

	_, err := e.Build(context.Background(), "personal", tbl, ColumnMap{Date: "Posted", Description: "Description", Amount: "Amount"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `date column "Posted" not found`)

	_, err = e.Build(context.Background(), "personal", tbl, ColumnMap{Date: "Date", Description: "Description"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing the amount role")
}

func TestLearn(t *testing.T) {
	store := rules.NewMemoryStore()
	ctx := context.Background()
	e := New(store, nil, DefaultOptions())

	cands := []*model.ImportCandidate{
		{SourceMerchantKey: "AMAZON MKTPL", Merchant: "Amazon", SelectedCategoryID: 8, RememberMapping: true},
		{SourceMerchantKey: "NETFLIX.COM", Merchant: "Netflix", SelectedCategoryID: 3},
	}

	n, err := e.Learn(ctx, "personal", cands)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := store.FetchAll(ctx, "personal")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Amazon", all["AMAZON MKTPL"].PreferredName)
}

func TestRecomputeBucket_Idempotent(t *testing.T) {
	c := &model.ImportCandidate{
		Merchant:           "COFFEE SHOP",
		Kind:               model.KindExpense,
		SelectedCategoryID: 2,
		IncludeInImport:    true,
		Bucket:             model.BucketReady,
		DuplicateHint:      true,
	}

	RecomputeBucket(c)
	assert.Equal(t, model.BucketPossibleDuplicate, c.Bucket)
	assert.False(t, c.IncludeInImport)

	RecomputeBucket(c)
	assert.Equal(t, model.BucketPossibleDuplicate, c.Bucket)
	assert.False(t, c.IncludeInImport)
}

func TestRecomputeBucket_MissingDataForcedOut(t *testing.T) {
	c := &model.ImportCandidate{
		Merchant:        "   ",
		IncludeInImport: true,
		Bucket:          model.BucketReady,
	}
	RecomputeBucket(c)
	assert.False(t, c.IncludeInImport)
	// The bucket itself is not regressed; only inclusion is forced off.
	assert.Equal(t, model.BucketReady, c.Bucket)
}

func TestRecomputeBucket_KeepsResolvedBucket(t *testing.T) {
	c := &model.ImportCandidate{
		Merchant:           "COFFEE SHOP",
		Kind:               model.KindExpense,
		SelectedCategoryID: 2,
		IncludeInImport:    true,
		Bucket:             model.BucketPossibleMatch,
	}
	RecomputeBucket(c)
	assert.Equal(t, model.BucketPossibleMatch, c.Bucket)
	assert.True(t, c.IncludeInImport)
}

func TestRecomputeBucket_FirstPassDefaultsBucket(t *testing.T) {
	c := &model.ImportCandidate{Merchant: ""}
	RecomputeBucket(c)
	assert.Equal(t, model.BucketNeedsMoreData, c.Bucket)
	assert.False(t, c.IncludeInImport)
}
