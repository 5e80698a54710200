package pages

import (
	"context"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
)

// Store persists pages and serves resource lookups to the resolver.
//
// InsertPage and UpdatePage demote published siblings of a published page in
// the same transaction, so two pages under one parent are never both live.
// Siblings share both the owner and the parent id; another owner's pages are
// never touched.
type Store interface {
	access.ResourceFinder

	InsertPage(ctx context.Context, p Page) error
	FindPage(ctx context.Context, id string) (Page, error)
	UpdatePage(ctx context.Context, p Page) (Page, error)
	// DemoteSiblings drafts every published page of ownerID under parentID except exceptID.
	DemoteSiblings(ctx context.Context, ownerID, parentID, exceptID string, now time.Time) (int64, error)
}
