// Package accessapi exposes the access resolver, grant lifecycle and page
// registry over HTTP. Resolver denials answer 403 with the denial reason as
// the error message; authentication failures stay 401.
package accessapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
	authapi "github.com/Flugers27/Memory-book/cmd/internal/auth/api"
	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
	"github.com/Flugers27/Memory-book/cmd/internal/invite"
	"github.com/Flugers27/Memory-book/cmd/internal/pages"

	"github.com/go-chi/chi/v5"
)

// Config controls the access API.
type Config struct {
	MaxBodyBytes int64
	// AdminToken guards /admin routes. Empty disables them.
	AdminToken string
}

// Handler serves the access and page endpoints.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	access   *access.Service
	pages    *pages.Service
	invites  *invite.Service
	verifier authapi.Verifier
	now      func() time.Time
}

// HandlerOption configures optional Handler dependencies.
type HandlerOption func(*Handler)

// WithInvites mounts the share-link endpoints backed by svc.
func WithInvites(svc *invite.Service) HandlerOption {
	return func(h *Handler) { h.invites = svc }
}

// NewHandler constructs a Handler. verifier authenticates bearer tokens.
func NewHandler(log *slog.Logger, cfg Config, acc *access.Service, pg *pages.Service, verifier authapi.Verifier, opts ...HandlerOption) (*Handler, error) {
	if acc == nil || pg == nil || verifier == nil {
		return nil, errors.New("accessapi: access, pages and verifier are required")
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:      log,
		cfg:      cfg,
		access:   acc,
		pages:    pg,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes mounts the access, page and admin endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	requireAuth := authapi.RequireAuth(h.verifier, h.log)
	optionalAuth := authapi.OptionalAuth(h.verifier, h.log)

	r.With(optionalAuth).Get("/access/check/{page_id}", h.handleCheck)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/access/grants", h.handleGrant)
		r.Get("/access/grants/received", h.handleListReceived)
		r.Get("/access/grants/given", h.handleListGiven)
		r.Patch("/access/grants/{grant_id}", h.handleUpdateGrant)
		r.Delete("/access/grants/{grant_id}", h.handleRevoke)

		r.Post("/pages", h.handleCreatePage)
		r.Patch("/pages/{page_id}", h.handleUpdatePage)
		r.Post("/pages/{page_id}/publish", h.handlePublish)

		if h.invites != nil {
			r.Post("/access/invites", h.handleCreateInvite)
			r.Post("/access/invites/redeem", h.handleRedeemInvite)
			r.Delete("/access/invites/{invite_id}", h.handleRevokeInvite)
			r.Get("/pages/{page_id}/invites", h.handleListInvites)
		}
	})
	r.With(optionalAuth).Get("/pages/{page_id}", h.handleGetPage)

	r.With(RequireAdmin(h.cfg.AdminToken)).Delete("/admin/grants/{grant_id}", h.handleHardDelete)
}

// ---- access ----

// handleCheck answers 200 with the decision whether or not access is granted.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "page_id")
	_, d, err := h.access.ResolveByID(r.Context(), authapi.CallerID(r.Context()), pageID)
	if err != nil {
		h.fail(w, "access.check", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toDecisionResponse(pageID, d))
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	g, err := h.access.Grant(r.Context(), authapi.CallerID(r.Context()), access.GrantInput{
		ResourceID: req.PageID,
		GranteeID:  req.GranteeID,
		CanView:    req.CanView,
		CanEdit:    req.CanEdit,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		h.fail(w, "access.grant", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toGrantResponse(g, h.now()))
}

func (h *Handler) handleUpdateGrant(w http.ResponseWriter, r *http.Request) {
	var req grantPatchRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	g, err := h.access.UpdateGrant(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "grant_id"), access.GrantPatch{
		CanView:     req.CanView,
		CanEdit:     req.CanEdit,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		h.fail(w, "access.grant.update", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toGrantResponse(g, h.now()))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	g, err := h.access.Revoke(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "grant_id"))
	if err != nil {
		h.fail(w, "access.grant.revoke", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toGrantResponse(g, h.now()))
}

func (h *Handler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListReceived(r.Context(), authapi.CallerID(r.Context()))
	h.writeGrants(w, "access.grants.received", list, err)
}

func (h *Handler) handleListGiven(w http.ResponseWriter, r *http.Request) {
	list, err := h.access.ListGiven(r.Context(), authapi.CallerID(r.Context()))
	h.writeGrants(w, "access.grants.given", list, err)
}

func (h *Handler) writeGrants(w http.ResponseWriter, op string, list []access.Grant, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	now := h.now()
	out := make([]grantResponse, 0, len(list))
	for _, g := range list {
		out = append(out, toGrantResponse(g, now))
	}
	httpx.WriteJSON(w, http.StatusOK, grantsResponse{Grants: out})
}

func (h *Handler) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.access.HardDelete(r.Context(), chi.URLParam(r, "grant_id")); err != nil {
		h.fail(w, "admin.grant.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- pages ----

func (h *Handler) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req pageCreateRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.pages.Create(r.Context(), authapi.CallerID(r.Context()), pages.CreateInput{
		ParentID: req.ParentID,
		Title:    req.Title,
		IsPublic: req.IsPublic,
		IsDraft:  req.IsDraft,
	})
	if err != nil {
		h.fail(w, "pages.create", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toPageResponse(p))
}

func (h *Handler) handleGetPage(w http.ResponseWriter, r *http.Request) {
	p, d, err := h.pages.Get(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "page_id"))
	if err != nil {
		h.fail(w, "pages.get", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pageWithAccessResponse{
		Page:   toPageResponse(p),
		Access: toDecisionResponse(p.ID, d),
	})
}

func (h *Handler) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	var req pagePatchRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	p, err := h.pages.Update(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "page_id"), pages.Patch{
		Title:    req.Title,
		IsPublic: req.IsPublic,
		IsDraft:  req.IsDraft,
	})
	if err != nil {
		h.fail(w, "pages.update", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPageResponse(p))
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	p, err := h.pages.Publish(r.Context(), authapi.CallerID(r.Context()), chi.URLParam(r, "page_id"))
	if err != nil {
		h.fail(w, "pages.publish", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPageResponse(p))
}

// ---- errors ----

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if reason, ok := access.DenialReason(err); ok {
		httpx.WriteError(w, http.StatusForbidden, "access_denied", string(reason))
		return
	}

	switch {
	case errors.Is(err, access.ErrForbidden), errors.Is(err, invite.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "operation not permitted")
	case errors.Is(err, access.ErrNotFound), errors.Is(err, invite.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, access.ErrDuplicateGrant):
		httpx.WriteError(w, http.StatusConflict, "duplicate_grant", "an active grant already exists; revoke it first")
	case errors.Is(err, invite.ErrNotActive):
		httpx.WriteError(w, http.StatusGone, "invite_inactive", "invite is revoked, expired or used up")
	case errors.Is(err, access.ErrInvalidInput), errors.Is(err, pages.ErrInvalidInput), errors.Is(err, invite.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error(op+".fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
