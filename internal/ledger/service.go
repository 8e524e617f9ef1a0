package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Service appends committed candidates to the workspace ledger file.
type Service struct {
	dataDir    string
	categories CategoryChecker
	now        func() time.Time
}

// NewService creates a ledger Service over a data directory.
func NewService(dataDir string, categories CategoryChecker) *Service {
	return &Service{dataDir: dataDir, categories: categories, now: time.Now}
}

// ReadAll reads every entry in the ledger. A missing file is an empty
// ledger, not an error.
func (s *Service) ReadAll() ([]model.LedgerEntry, error) {
	path := s.path()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return entries, nil
}

// Commit translates candidates with IncludeInImport set into ledger
// entries, validates them against the existing ledger, and appends them.
// Returns the entries written.
func (s *Service) Commit(workspace string, cands []*model.ImportCandidate) ([]model.LedgerEntry, error) {
	now := s.now()

	var newEntries []model.LedgerEntry
	for _, c := range cands {
		if !c.IncludeInImport {
			continue
		}
		newEntries = append(newEntries, model.LedgerEntry{
			ID:          c.ID,
			Workspace:   workspace,
			Date:        c.Date,
			Merchant:    strings.TrimSpace(c.Merchant),
			MerchantKey: c.SourceMerchantKey,
			Amount:      c.Amount,
			Kind:        c.Kind,
			CategoryID:  c.SelectedCategoryID,
			SourceLine:  c.Source.Line,
			ImportedAt:  now,
		})
	}
	if len(newEntries) == 0 {
		return nil, nil
	}

	existing, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	all := append(existing, newEntries...)
	if verrs := ValidateEntries(all, s.categories); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	if err := s.append(newEntries); err != nil {
		return nil, err
	}
	return newEntries, nil
}

// Contains reports whether an entry ID is already in the ledger.
func (s *Service) Contains(id uuid.UUID) (bool, error) {
	entries, err := s.ReadAll()
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) append(entries []model.LedgerEntry) error {
	path := s.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	if err := AppendEntries(f, entries); err != nil {
		return fmt.Errorf("appending entries: %w", err)
	}
	return nil
}

func (s *Service) path() string {
	return filepath.Join(s.dataDir, "ledger.csv")
}
