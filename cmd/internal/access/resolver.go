package access

import "time"

// Resource is the slice of a page the resolver reads.
type Resource struct {
	ID       string
	OwnerID  string
	ParentID string
	IsPublic bool
	IsDraft  bool
}

// Reason explains a decision.
type Reason string

const (
	ReasonOwner        Reason = "owner"
	ReasonPublic       Reason = "public"
	ReasonGrant        Reason = "grant"
	ReasonExpired      Reason = "access expired"
	ReasonNoAccess     Reason = "no access"
	ReasonInsufficient Reason = "insufficient privileges"
)

// Decision is the effective permission of a caller on a resource.
type Decision struct {
	HasAccess bool
	CanView   bool
	CanEdit   bool
	Reason    Reason
}

// Need is the privilege an operation requires.
type Need int

const (
	NeedView Need = iota
	NeedEdit
)

// Allows reports whether d satisfies need.
func (d Decision) Allows(need Need) bool {
	if need == NeedEdit {
		return d.CanEdit
	}
	return d.CanView
}

// Evaluate applies the precedence rules. grant is the caller's active grant on
// res, or nil. An empty callerID is anonymous and only ever matches the public rule.
func Evaluate(callerID string, res Resource, grant *Grant, now time.Time) Decision {
	if callerID != "" && res.OwnerID == callerID {
		return Decision{HasAccess: true, CanView: true, CanEdit: true, Reason: ReasonOwner}
	}
	if res.IsPublic && !res.IsDraft {
		return Decision{HasAccess: true, CanView: true, Reason: ReasonPublic}
	}
	if callerID != "" && grant != nil && grant.GranteeID == callerID && grant.ResourceID == res.ID {
		switch grant.StatusAt(now) {
		case GrantActive:
			return Decision{
				HasAccess: grant.CanView || grant.CanEdit,
				CanView:   grant.CanView,
				CanEdit:   grant.CanEdit,
				Reason:    ReasonGrant,
			}
		case GrantExpired:
			return Decision{Reason: ReasonExpired}
		}
	}
	return Decision{Reason: ReasonNoAccess}
}
