package access

import "time"

// GrantStatus is the lifecycle state of a grant. Storage holds active or
// revoked; expired is derived from ExpiresAt.
type GrantStatus string

const (
	GrantActive  GrantStatus = "active"
	GrantRevoked GrantStatus = "revoked"
	GrantExpired GrantStatus = "expired"
)

// Grant gives a non-owner view and/or edit rights on one page.
type Grant struct {
	ID         string
	ResourceID string
	GranteeID  string
	GrantorID  string
	CanView    bool
	CanEdit    bool
	Status     GrantStatus
	GrantedAt  time.Time
	ExpiresAt  *time.Time // nil never expires
	RevokedAt  *time.Time
	UpdatedAt  time.Time
}

// StatusAt returns the effective status at now.
func (g Grant) StatusAt(now time.Time) GrantStatus {
	if g.Status == GrantRevoked {
		return GrantRevoked
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return GrantExpired
	}
	return g.Status
}

// GrantInput describes a new grant. The grantor is the authenticated caller.
type GrantInput struct {
	ResourceID string
	GranteeID  string
	CanView    bool
	CanEdit    bool
	ExpiresAt  *time.Time
}

// GrantPatch changes an active grant. Nil fields are left as-is;
// ClearExpiry removes the expiry.
type GrantPatch struct {
	CanView     *bool
	CanEdit     *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// GrantFilter selects grants for listing. Empty fields match everything.
type GrantFilter struct {
	GranteeID string
	GrantorID string
}
