// Package categories provides lookup over the workspace's spending
// categories. The import pipeline receives resolved category references
// from here; it never creates or deletes categories.
package categories

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Service provides in-memory lookup over categories.
type Service struct {
	categories []model.Category
	byID       map[int]model.Category
}

// NewService creates a Service from a slice of categories.
func NewService(categories []model.Category) *Service {
	byID := make(map[int]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return &Service{categories: categories, byID: byID}
}

// Load reads categories.csv from a data directory and returns a Service.
func Load(dataDir string) (*Service, error) {
	path := filepath.Join(dataDir, "categories.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening categories: %w", err)
	}
	defer f.Close()

	cats, err := ReadCategories(f)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	return NewService(cats), nil
}

// All returns all categories.
func (s *Service) All() []model.Category {
	return s.categories
}

// Get returns a category by ID.
func (s *Service) Get(id int) (model.Category, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Exists reports whether a category ID exists.
func (s *Service) Exists(id int) bool {
	_, ok := s.byID[id]
	return ok
}

// Save writes the categories to <dataDir>/categories.csv.
func (s *Service) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, "categories.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating categories file: %w", err)
	}
	defer f.Close()

	if err := WriteCategories(f, s.categories); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}
	return nil
}
