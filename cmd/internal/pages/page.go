// Package pages is the write side of the resource registry. It owns the
// single-published-sibling rule: any write that leaves a page published
// demotes the other published pages under the same parent to draft.
package pages

import (
	"errors"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
)

var (
	ErrInvalidInput = errors.New("invalid page")
	// ErrNotFound is access.ErrNotFound so resolver and store misses classify alike.
	ErrNotFound = access.ErrNotFound
)

const maxTitleLen = 200

// Page is a memorial page.
type Page struct {
	ID        string
	OwnerID   string
	ParentID  string
	Title     string
	IsPublic  bool
	IsDraft   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resource returns the flags the access resolver reads.
func (p Page) Resource() access.Resource {
	return access.Resource{ID: p.ID, OwnerID: p.OwnerID, ParentID: p.ParentID, IsPublic: p.IsPublic, IsDraft: p.IsDraft}
}

// Published reports whether the page is live.
func (p Page) Published() bool { return !p.IsDraft }

// CreateInput describes a new page. IsDraft defaults to true.
type CreateInput struct {
	ParentID string
	Title    string
	IsPublic bool
	IsDraft  *bool
}

// Patch changes a page. Nil fields are left as-is.
type Patch struct {
	Title    *string
	IsPublic *bool
	IsDraft  *bool
}
