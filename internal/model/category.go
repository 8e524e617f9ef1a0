package model

// Category is a resolved reference to a workspace spending category.
// Categories are owned by the workspace; the import pipeline only looks
// them up by ID and never creates or deletes them.
type Category struct {
	ID          int
	Name        string
	ParentID    int // 0 = top-level
	Description string
}
