package accessapi

import (
	"net/http"
	"time"

	authapi "github.com/Flugers27/Memory-book/cmd/internal/auth/api"
	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
	"github.com/Flugers27/Memory-book/cmd/internal/invite"

	"github.com/go-chi/chi/v5"
)

type inviteCreateRequest struct {
	PageID         string     `json:"page_id"`
	CanView        bool       `json:"can_view"`
	CanEdit        bool       `json:"can_edit"`
	GrantExpiresAt *time.Time `json:"grant_expires_at"`
	TTLSeconds     int64      `json:"ttl_seconds"`
	MaxUses        int        `json:"max_uses"`
	Note           *string    `json:"note"`
}

type inviteRedeemRequest struct {
	Token string `json:"token"`
}

type inviteResponse struct {
	ID             string     `json:"id"`
	PageID         string     `json:"page_id"`
	CreatedBy      string     `json:"created_by"`
	CanView        bool       `json:"can_view"`
	CanEdit        bool       `json:"can_edit"`
	GrantExpiresAt *time.Time `json:"grant_expires_at"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	MaxUses        int        `json:"max_uses"`
	UsedCount      int        `json:"used_count"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	Note           *string    `json:"note,omitempty"`
}

func toInviteResponse(inv invite.Invite, now time.Time) inviteResponse {
	return inviteResponse{
		ID:             inv.ID,
		PageID:         inv.ResourceID,
		CreatedBy:      inv.CreatedBy,
		CanView:        inv.CanView,
		CanEdit:        inv.CanEdit,
		GrantExpiresAt: inv.GrantExpiresAt,
		Active:         inv.ActiveAt(now),
		CreatedAt:      inv.CreatedAt,
		ExpiresAt:      inv.ExpiresAt,
		MaxUses:        inv.MaxUses,
		UsedCount:      inv.UsedCount,
		RevokedAt:      inv.RevokedAt,
		Note:           inv.Note,
	}
}

// inviteCreatedResponse carries the plain token exactly once.
type inviteCreatedResponse struct {
	Invite inviteResponse `json:"invite"`
	Token  string         `json:"token"`
}

type invitesResponse struct {
	Invites []inviteResponse `json:"invites"`
}

func (h *Handler) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteCreateRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	inv, raw, err := h.invites.Create(r.Context(), authapi.CallerID(r.Context()), invite.CreateInput{
		ResourceID:     req.PageID,
		CanView:        req.CanView,
		CanEdit:        req.CanEdit,
		GrantExpiresAt: req.GrantExpiresAt,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		MaxUses:        req.MaxUses,
		Note:           req.Note,
	})
	if err != nil {
		h.fail(w, "invite.create", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, inviteCreatedResponse{Invite: toInviteResponse(inv, h.now()), Token: raw})
}

func (h *Handler) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRedeemRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	g, err := h.invites.Redeem(r.Context(), authapi.CallerID(r.Context()), req.Token)
	if err != nil {
		h.fail(w, "invite.redeem", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toGrantResponse(g, h.now()))
}

func (h *Handler) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invites.Revoke(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "invite_id"))
	if err != nil {
		h.fail(w, "invite.revoke", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInviteResponse(inv, h.now()))
}

func (h *Handler) handleListInvites(w http.ResponseWriter, r *http.Request) {
	list, err := h.invites.List(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "page_id"))
	if err != nil {
		h.fail(w, "invite.list", err)
		return
	}
	now := h.now()
	out := make([]inviteResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, toInviteResponse(inv, now))
	}
	httpx.WriteJSON(w, http.StatusOK, invitesResponse{Invites: out})
}
