package accessapi

import (
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
	"github.com/Flugers27/Memory-book/cmd/internal/pages"
)

type grantRequest struct {
	PageID    string     `json:"page_id"`
	GranteeID string     `json:"grantee_id"`
	CanView   bool       `json:"can_view"`
	CanEdit   bool       `json:"can_edit"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type grantPatchRequest struct {
	CanView     *bool      `json:"can_view"`
	CanEdit     *bool      `json:"can_edit"`
	ExpiresAt   *time.Time `json:"expires_at"`
	ClearExpiry bool       `json:"clear_expiry"`
}

type pageCreateRequest struct {
	ParentID string `json:"parent_id"`
	Title    string `json:"title"`
	IsPublic bool   `json:"is_public"`
	IsDraft  *bool  `json:"is_draft"`
}

type pagePatchRequest struct {
	Title    *string `json:"title"`
	IsPublic *bool   `json:"is_public"`
	IsDraft  *bool   `json:"is_draft"`
}

type decisionResponse struct {
	PageID    string `json:"page_id"`
	HasAccess bool   `json:"has_access"`
	CanView   bool   `json:"can_view"`
	CanEdit   bool   `json:"can_edit"`
	Reason    string `json:"reason"`
}

func toDecisionResponse(pageID string, d access.Decision) decisionResponse {
	return decisionResponse{
		PageID:    pageID,
		HasAccess: d.HasAccess,
		CanView:   d.CanView,
		CanEdit:   d.CanEdit,
		Reason:    string(d.Reason),
	}
}

type grantResponse struct {
	ID        string     `json:"id"`
	PageID    string     `json:"page_id"`
	GranteeID string     `json:"grantee_id"`
	GrantorID string     `json:"grantor_id"`
	CanView   bool       `json:"can_view"`
	CanEdit   bool       `json:"can_edit"`
	Status    string     `json:"status"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func toGrantResponse(g access.Grant, now time.Time) grantResponse {
	return grantResponse{
		ID:        g.ID,
		PageID:    g.ResourceID,
		GranteeID: g.GranteeID,
		GrantorID: g.GrantorID,
		CanView:   g.CanView,
		CanEdit:   g.CanEdit,
		Status:    string(g.StatusAt(now)),
		GrantedAt: g.GrantedAt,
		ExpiresAt: g.ExpiresAt,
		RevokedAt: g.RevokedAt,
	}
}

type grantsResponse struct {
	Grants []grantResponse `json:"grants"`
}

type pageResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ParentID  string    `json:"parent_id"`
	Title     string    `json:"title"`
	IsPublic  bool      `json:"is_public"`
	IsDraft   bool      `json:"is_draft"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toPageResponse(p pages.Page) pageResponse {
	return pageResponse{
		ID:        p.ID,
		OwnerID:   p.OwnerID,
		ParentID:  p.ParentID,
		Title:     p.Title,
		IsPublic:  p.IsPublic,
		IsDraft:   p.IsDraft,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type pageWithAccessResponse struct {
	Page   pageResponse     `json:"page"`
	Access decisionResponse `json:"access"`
}
