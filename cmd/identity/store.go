package identity

import "context"

// Store is the credential persistence boundary.
//
// Lookups return an error wrapping ErrNotFound when no row matches.
// InsertUser returns a ConflictError naming "email" or "username" on duplicates.
type Store interface {
	InsertUser(ctx context.Context, u User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
}
