package invite

import (
	"context"
	"time"
)

// CreateRecord is a normalized invite insert payload.
type CreateRecord struct {
	Invite
	TokenHash string
}

// ConsumeRecord describes a token consumption.
type ConsumeRecord struct {
	TokenHash  string
	ConsumedBy string
	Now        time.Time
}

// Store is the persistence boundary for invites.
//
// Consume is atomic: it fails with ErrNotActive when the invite is revoked,
// expired or used up at Now, and with ErrNotFound when no invite matches.
type Store interface {
	Create(ctx context.Context, in CreateRecord) (Invite, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (Invite, error)
	FindByID(ctx context.Context, id string) (Invite, error)
	ListByResource(ctx context.Context, resourceID string) ([]Invite, error)
	Consume(ctx context.Context, in ConsumeRecord) (Invite, error)
	Revoke(ctx context.Context, id string, now time.Time) (Invite, error)
}
