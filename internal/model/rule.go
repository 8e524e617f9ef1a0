package model

import "time"

// MerchantRule is a learned mapping from a normalized merchant key to the
// user's preferred display name and category. At most one rule exists per
// (workspace, key) pair; rules are never deleted by the import pipeline.
type MerchantRule struct {
	Key           string // normalized merchant key, never empty
	PreferredName string // empty = fall back to the key
	CategoryID    int    // 0 = no preferred category
	Workspace     string
	UpdatedAt     time.Time
}
