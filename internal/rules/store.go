// Package rules persists learned merchant→category mappings. A rule is
// created the first time a user confirms a mapping and overwritten on
// every later confirmation for the same key, so the store always reflects
// the most recent choice.
package rules

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Store is the read/write contract for learned merchant rules, scoped to
// a workspace. Implementations must serialize Upsert calls per workspace:
// upsert is a read-then-write sequence, and two concurrent upserts on the
// same key must not both take the create branch.
type Store interface {
	// FetchAll returns every rule for the workspace keyed by merchant
	// key. Rules with an empty key are excluded.
	FetchAll(ctx context.Context, workspace string) (map[string]model.MerchantRule, error)

	// Upsert creates or overwrites the rule for (workspace, key) and
	// refreshes its timestamp. An empty key (after trimming) is a
	// silent no-op: learning is best-effort and must never fail a
	// commit over a blank merchant.
	Upsert(ctx context.Context, workspace, key, preferredName string, categoryID int) error
}

// MemoryStore is an in-process Store. Zero value is not usable; call
// NewMemoryStore.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]map[string]model.MerchantRule // workspace -> key -> rule
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]map[string]model.MerchantRule),
		now:   time.Now,
	}
}

// FetchAll returns a snapshot copy of the workspace's rules.
func (s *MemoryStore) FetchAll(_ context.Context, workspace string) (map[string]model.MerchantRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.MerchantRule, len(s.rules[workspace]))
	for key, rule := range s.rules[workspace] {
		if key == "" {
			continue
		}
		out[key] = rule
	}
	return out, nil
}

// Upsert implements Store. The existence check and write happen under one
// lock, so concurrent upserts on the same key cannot both create.
func (s *MemoryStore) Upsert(_ context.Context, workspace, key, preferredName string, categoryID int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws := s.rules[workspace]
	if ws == nil {
		ws = make(map[string]model.MerchantRule)
		s.rules[workspace] = ws
	}

	rule, ok := ws[key]
	if !ok {
		rule = model.MerchantRule{Key: key, Workspace: workspace}
	}
	rule.PreferredName = preferredName
	rule.CategoryID = categoryID
	rule.UpdatedAt = s.now()
	ws[key] = rule
	return nil
}
