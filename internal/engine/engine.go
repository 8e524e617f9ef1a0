// Package engine turns a tokenized CSV table into review candidates. For
// each data row it derives merchant keys, consults the rule store, applies
// the confidence and classification policy, and assigns a review bucket.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankfeed-dev/bankfeed/internal/csvtable"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/normalize"
	"github.com/bankfeed-dev/bankfeed/internal/rules"
)

// Match reasons surfaced on candidates.
const (
	ReasonRuleMatch = "Matched learned rule"
	ReasonNoMatch   = "No learned match, needs review"
)

// ColumnMap assigns column roles to header names. Date, Description and
// Amount are required; Merchant and Category are optional because many
// exports lack them. The mapping is caller configuration, never inferred.
type ColumnMap struct {
	Date        string
	Description string
	Merchant    string
	Amount      string
	Category    string
}

// DuplicateHinter flags candidates that likely already exist in the
// ledger. The engine only consumes the boolean; the matching heuristic
// belongs to the implementation.
type DuplicateHinter interface {
	Hint(date time.Time, amount decimal.Decimal, merchantKey string) bool
}

// Options tunes the per-row policy.
type Options struct {
	// ReadyThreshold separates the ready bucket from possible-match.
	ReadyThreshold float64
	// InvertSign flips amounts from exports that list charges as
	// positive. After inversion, negative = expense, positive = income.
	InvertSign bool
	// ParseDate converts raw date text. Locale policy is the caller's;
	// a nil parser or a parse failure leaves the date zero.
	ParseDate func(string) (time.Time, error)
}

// DefaultOptions returns the standard policy.
func DefaultOptions() Options {
	return Options{ReadyThreshold: 0.90}
}

// Engine matches CSV rows against learned rules for one rule store.
type Engine struct {
	store  rules.Store
	hinter DuplicateHinter // may be nil
	opts   Options
}

// New creates an Engine. Options are taken as given, including a zero
// ReadyThreshold; callers wanting the standard policy start from
// DefaultOptions. hinter may be nil when no ledger is available.
func New(store rules.Store, hinter DuplicateHinter, opts Options) *Engine {
	return &Engine{store: store, hinter: hinter, opts: opts}
}

// Build produces one candidate per data row, in source order.
func (e *Engine) Build(ctx context.Context, workspace string, table *csvtable.Table, cols ColumnMap) ([]*model.ImportCandidate, error) {
	idx, err := resolveColumns(table.Headers, cols)
	if err != nil {
		return nil, err
	}

	ruleset, err := e.store.FetchAll(ctx, workspace)
	if err != nil {
		return nil, fmt.Errorf("fetching rules: %w", err)
	}

	cands := make([]*model.ImportCandidate, 0, len(table.Rows))
	for i, row := range table.Rows {
		line := i + 2
		if i < len(table.Lines) {
			line = table.Lines[i]
		}
		cands = append(cands, e.buildRow(ruleset, row, idx, line))
	}
	return cands, nil
}

// buildRow runs the per-row procedure: keys, rule lookup, classification,
// duplicate hint, initial bucket.
func (e *Engine) buildRow(ruleset map[string]model.MerchantRule, row []string, idx columnIndex, line int) *model.ImportCandidate {
	c := &model.ImportCandidate{
		ID: uuid.New(),
		Source: model.RowSource{
			Line:           line,
			RawDate:        idx.get(row, idx.date),
			RawDescription: idx.get(row, idx.description),
			RawMerchant:    idx.get(row, idx.merchant),
			RawAmount:      idx.get(row, idx.amount),
			RawCategory:    idx.get(row, idx.category),
		},
	}

	merchantSource := c.Source.RawMerchant
	if strings.TrimSpace(merchantSource) == "" {
		merchantSource = c.Source.RawDescription
	}
	c.SourceMerchantKey = normalize.Key(merchantSource)
	c.DescriptionMerchantKey = normalize.Key(c.Source.RawDescription)

	if e.opts.ParseDate != nil {
		if d, err := e.opts.ParseDate(strings.TrimSpace(c.Source.RawDate)); err == nil {
			c.Date = d
		}
	}

	c.Amount = parseAmount(c.Source.RawAmount)
	if e.opts.InvertSign {
		c.Amount = c.Amount.Neg()
	}

	switch {
	case isPaymentText(c.Source.RawCategory) || isPaymentText(c.Source.RawDescription):
		c.Kind = model.KindPayment
	case c.Amount.IsPositive():
		c.Kind = model.KindIncome
	default:
		c.Kind = model.KindExpense
	}

	rule, matched := ruleset[c.SourceMerchantKey]
	matchedKey := c.SourceMerchantKey
	if !matched {
		rule, matched = ruleset[c.DescriptionMerchantKey]
		matchedKey = c.DescriptionMerchantKey
	}

	if matched {
		c.SuggestedCategoryID = rule.CategoryID
		c.Confidence = 1.0
		c.MatchReason = ReasonRuleMatch
		c.Merchant = rule.PreferredName
		if c.Merchant == "" {
			c.Merchant = matchedKey
		}
	} else {
		c.Confidence = 0
		c.MatchReason = ReasonNoMatch
		c.Merchant = c.SourceMerchantKey
	}

	// The suggestion is pre-accepted; the user can still clear or
	// replace it during review.
	c.SelectedCategoryID = c.SuggestedCategoryID

	c.IncludeInImport = true
	c.Bucket = e.initialBucket(c)

	if e.hinter != nil {
		c.DuplicateHint = e.hinter.Hint(c.Date, c.Amount, c.SourceMerchantKey)
	}

	RecomputeBucket(c)
	return c
}

// initialBucket assigns the pre-review bucket: payments first, then by
// confidence, with incomplete rows parked in needs-more-data.
func (e *Engine) initialBucket(c *model.ImportCandidate) model.Bucket {
	switch {
	case c.Kind == model.KindPayment:
		return model.BucketPayment
	case c.MissingRequiredData():
		return model.BucketNeedsMoreData
	case c.Confidence >= e.opts.ReadyThreshold:
		return model.BucketReady
	case c.Confidence > 0:
		return model.BucketPossibleMatch
	default:
		return model.BucketNeedsMoreData
	}
}

// Learn upserts a merchant rule for every candidate with RememberMapping
// set. Returns the number of rules written. Called on commit; rows that
// were not committed should have the flag cleared by the caller.
func (e *Engine) Learn(ctx context.Context, workspace string, cands []*model.ImportCandidate) (int, error) {
	learned := 0
	for _, c := range cands {
		if !c.RememberMapping {
			continue
		}
		if err := e.store.Upsert(ctx, workspace, c.SourceMerchantKey, strings.TrimSpace(c.Merchant), c.SelectedCategoryID); err != nil {
			return learned, fmt.Errorf("learning rule for %q: %w", c.SourceMerchantKey, err)
		}
		learned++
	}
	return learned, nil
}

// columnIndex holds resolved header positions; -1 = role not mapped.
type columnIndex struct {
	date, description, merchant, amount, category int
}

func (columnIndex) get(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func resolveColumns(headers []string, cols ColumnMap) (columnIndex, error) {
	idx := columnIndex{date: -1, description: -1, merchant: -1, amount: -1, category: -1}

	find := func(name string) int {
		for i, h := range headers {
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}

	required := []struct {
		role string
		name string
		dst  *int
	}{
		{"date", cols.Date, &idx.date},
		{"description", cols.Description, &idx.description},
		{"amount", cols.Amount, &idx.amount},
	}
	for _, r := range required {
		if r.name == "" {
			return idx, fmt.Errorf("column mapping is missing the %s role", r.role)
		}
		*r.dst = find(r.name)
		if *r.dst < 0 {
			return idx, fmt.Errorf("%s column %q not found in header", r.role, r.name)
		}
	}

	if cols.Merchant != "" {
		idx.merchant = find(cols.Merchant)
	}
	if cols.Category != "" {
		idx.category = find(cols.Category)
	}
	return idx, nil
}
