package rules

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Header is the CSV header for rules.csv.
const Header = "workspace,merchant_key,preferred_name,category_id,updated_at"

const (
	numFields    = 5
	colWorkspace = 0
	colKey       = 1
	colName      = 2
	colCategory  = 3
	colUpdatedAt = 4
)

// FileStore persists rules in a rules.csv file under the data directory.
// All operations read and rewrite the whole file under one mutex, which
// also serializes upserts.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore creates a FileStore for <dir>/rules.csv. The file is
// created on first upsert.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		path: filepath.Join(dir, "rules.csv"),
		now:  time.Now,
	}
}

// FetchAll implements Store. A missing file means no rules yet.
func (s *FileStore) FetchAll(_ context.Context, workspace string) (map[string]model.MerchantRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.MerchantRule)
	for _, rule := range all {
		if rule.Workspace != workspace || rule.Key == "" {
			continue
		}
		out[rule.Key] = rule
	}
	return out, nil
}

// Upsert implements Store via read-modify-rewrite of the whole file.
func (s *FileStore) Upsert(_ context.Context, workspace, key, preferredName string, categoryID int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	updated := false
	for i, rule := range all {
		if rule.Workspace == workspace && rule.Key == key {
			all[i].PreferredName = preferredName
			all[i].CategoryID = categoryID
			all[i].UpdatedAt = s.now()
			updated = true
			break
		}
	}
	if !updated {
		all = append(all, model.MerchantRule{
			Key:           key,
			PreferredName: preferredName,
			CategoryID:    categoryID,
			Workspace:     workspace,
			UpdatedAt:     s.now(),
		})
	}

	return s.writeAll(all)
}

func (s *FileStore) readAll() ([]model.MerchantRule, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening rules file: %w", err)
	}
	defer f.Close()

	return ReadRules(f)
}

func (s *FileStore) writeAll(all []model.MerchantRule) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating rules dir: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating rules file: %w", err)
	}
	defer f.Close()

	return WriteRules(f, all)
}

// ReadRules reads all rules from a rules.csv reader.
func ReadRules(r io.Reader) ([]model.MerchantRule, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rules CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var all []model.MerchantRule
	for i, rec := range records[1:] {
		rule, err := UnmarshalRule(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		all = append(all, rule)
	}
	return all, nil
}

// WriteRules writes rules to a rules.csv writer (including header).
func WriteRules(w io.Writer, all []model.MerchantRule) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, rule := range all {
		if err := cw.Write(MarshalRule(rule)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalRule converts a MerchantRule to a CSV row.
func MarshalRule(rule model.MerchantRule) []string {
	row := make([]string, numFields)
	row[colWorkspace] = rule.Workspace
	row[colKey] = rule.Key
	row[colName] = rule.PreferredName
	if rule.CategoryID != 0 {
		row[colCategory] = strconv.Itoa(rule.CategoryID)
	}
	row[colUpdatedAt] = rule.UpdatedAt.UTC().Format(time.RFC3339)
	return row
}

// UnmarshalRule converts a CSV row to a MerchantRule.
func UnmarshalRule(record []string) (model.MerchantRule, error) {
	if len(record) != numFields {
		return model.MerchantRule{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	var categoryID int
	var err error
	if record[colCategory] != "" {
		categoryID, err = strconv.Atoi(record[colCategory])
		if err != nil {
			return model.MerchantRule{}, fmt.Errorf("parsing category_id %q: %w", record[colCategory], err)
		}
	}

	updatedAt, err := time.Parse(time.RFC3339, record[colUpdatedAt])
	if err != nil {
		return model.MerchantRule{}, fmt.Errorf("parsing updated_at %q: %w", record[colUpdatedAt], err)
	}

	return model.MerchantRule{
		Key:           record[colKey],
		PreferredName: record[colName],
		CategoryID:    categoryID,
		Workspace:     record[colWorkspace],
		UpdatedAt:     updatedAt,
	}, nil
}
