package access

import "context"

// GrantStore persists grants.
//
// Lookups return ErrNotFound when nothing matches. InsertGrant returns
// ErrDuplicateGrant when the pair already has an active grant and ErrNotFound
// when the page or a user does not exist. UpdateGrant only touches active rows.
type GrantStore interface {
	FindActiveGrant(ctx context.Context, resourceID, granteeID string) (Grant, error)
	FindGrant(ctx context.Context, id string) (Grant, error)
	InsertGrant(ctx context.Context, g Grant) error
	UpdateGrant(ctx context.Context, g Grant) (Grant, error)
	DeleteGrant(ctx context.Context, id string) error
	ListGrants(ctx context.Context, f GrantFilter) ([]Grant, error)
}

// ResourceFinder loads the ownership and visibility flags of a page.
type ResourceFinder interface {
	FindResource(ctx context.Context, id string) (Resource, error)
}
