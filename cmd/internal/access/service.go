package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("memorybook/access")

// Service is the access resolver plus the grant lifecycle.
type Service struct {
	grants    GrantStore
	resources ResourceFinder
	log       *slog.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics counts decisions on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs the resolver.
func NewService(grants GrantStore, resources ResourceFinder, opts ...Option) (*Service, error) {
	if grants == nil || resources == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		grants:    grants,
		resources: resources,
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Resolve computes the caller's permission on res. The grant store is only
// consulted when neither ownership nor public visibility decides.
func (s *Service) Resolve(ctx context.Context, callerID string, res Resource) (Decision, error) {
	ctx, span := tracer.Start(ctx, "access.Resolve", trace.WithAttributes(attribute.String("resource.id", res.ID)))
	defer span.End()

	var grant *Grant
	if callerID != "" && res.OwnerID != callerID && !(res.IsPublic && !res.IsDraft) {
		g, err := s.grants.FindActiveGrant(ctx, res.ID, callerID)
		switch {
		case err == nil:
			grant = &g
		case errors.Is(err, ErrNotFound):
		default:
			span.RecordError(err)
			return Decision{}, err
		}
	}

	d := Evaluate(callerID, res, grant, s.now())
	span.SetAttributes(attribute.String("access.reason", string(d.Reason)))
	s.metrics.AccessDecision(string(d.Reason))
	return d, nil
}

// ResolveByID loads the resource and resolves the caller's permission on it.
func (s *Service) ResolveByID(ctx context.Context, callerID, resourceID string) (Resource, Decision, error) {
	res, err := s.resources.FindResource(ctx, resourceID)
	if err != nil {
		return Resource{}, Decision{}, err
	}
	d, err := s.Resolve(ctx, callerID, res)
	if err != nil {
		return Resource{}, Decision{}, err
	}
	return res, d, nil
}

// Require resolves and fails with a *DeniedError unless the decision satisfies need.
func (s *Service) Require(ctx context.Context, callerID, resourceID string, need Need) (Resource, Decision, error) {
	res, d, err := s.ResolveByID(ctx, callerID, resourceID)
	if err != nil {
		return Resource{}, Decision{}, err
	}
	if !d.Allows(need) {
		reason := d.Reason
		if d.HasAccess {
			reason = ReasonInsufficient
		}
		return res, d, &DeniedError{Reason: reason}
	}
	return res, d, nil
}

// Grant records a new grant by grantorID, who must be able to edit the resource.
// The expiry may already be in the past.
func (s *Service) Grant(ctx context.Context, grantorID string, in GrantInput) (Grant, error) {
	ctx, span := tracer.Start(ctx, "access.Grant")
	defer span.End()

	in.ResourceID = strings.TrimSpace(in.ResourceID)
	in.GranteeID = strings.TrimSpace(in.GranteeID)
	switch {
	case grantorID == "" || in.ResourceID == "" || in.GranteeID == "":
		return Grant{}, fmt.Errorf("%w: resource and grantee are required", ErrInvalidInput)
	case !in.CanView && !in.CanEdit:
		return Grant{}, fmt.Errorf("%w: grant must allow view or edit", ErrInvalidInput)
	case in.GranteeID == grantorID:
		return Grant{}, fmt.Errorf("%w: cannot grant to yourself", ErrInvalidInput)
	}

	res, d, err := s.ResolveByID(ctx, grantorID, in.ResourceID)
	if err != nil {
		return Grant{}, err
	}
	if !d.CanEdit {
		return Grant{}, ErrForbidden
	}
	if in.GranteeID == res.OwnerID {
		return Grant{}, fmt.Errorf("%w: the owner already has full access", ErrInvalidInput)
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Grant{}, err
	}
	g := Grant{
		ID:         id,
		ResourceID: res.ID,
		GranteeID:  in.GranteeID,
		GrantorID:  grantorID,
		CanView:    in.CanView || in.CanEdit,
		CanEdit:    in.CanEdit,
		Status:     GrantActive,
		GrantedAt:  now,
		ExpiresAt:  utcPtr(in.ExpiresAt),
		UpdatedAt:  now,
	}
	if err := s.grants.InsertGrant(ctx, g); err != nil {
		s.log.Warn("access.grant.create.fail", "resource_id", res.ID, "grantee_id", in.GranteeID, "err", err)
		return Grant{}, err
	}

	s.log.Info("access.grant.create", "grant_id", g.ID, "resource_id", res.ID, "grantee_id", g.GranteeID,
		"can_view", g.CanView, "can_edit", g.CanEdit)
	return g, nil
}

// UpdateGrant applies patch to an active grant. Only the grantor may do so.
func (s *Service) UpdateGrant(ctx context.Context, actorID, grantID string, patch GrantPatch) (Grant, error) {
	g, err := s.ownedGrant(ctx, actorID, grantID)
	if err != nil {
		return Grant{}, err
	}
	if g.Status != GrantActive {
		return Grant{}, ErrNotFound
	}

	if patch.CanView != nil {
		g.CanView = *patch.CanView
	}
	if patch.CanEdit != nil {
		g.CanEdit = *patch.CanEdit
	}
	if g.CanEdit {
		g.CanView = true
	}
	if !g.CanView && !g.CanEdit {
		return Grant{}, fmt.Errorf("%w: grant must allow view or edit", ErrInvalidInput)
	}
	switch {
	case patch.ClearExpiry:
		g.ExpiresAt = nil
	case patch.ExpiresAt != nil:
		g.ExpiresAt = utcPtr(patch.ExpiresAt)
	}
	g.UpdatedAt = s.now()

	out, err := s.grants.UpdateGrant(ctx, g)
	if err != nil {
		return Grant{}, err
	}
	s.log.Info("access.grant.update", "grant_id", g.ID)
	return out, nil
}

// Revoke soft-deletes a grant. Revoking a revoked grant returns it unchanged.
func (s *Service) Revoke(ctx context.Context, actorID, grantID string) (Grant, error) {
	g, err := s.ownedGrant(ctx, actorID, grantID)
	if err != nil {
		return Grant{}, err
	}
	if g.Status == GrantRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = GrantRevoked
	g.RevokedAt = &now
	g.UpdatedAt = now

	out, err := s.grants.UpdateGrant(ctx, g)
	if errors.Is(err, ErrNotFound) {
		// Lost a race with another revoke.
		return s.grants.FindGrant(ctx, grantID)
	}
	if err != nil {
		return Grant{}, err
	}
	s.log.Info("access.grant.revoke", "grant_id", g.ID)
	return out, nil
}

// HardDelete physically removes a grant. Administrative use only.
func (s *Service) HardDelete(ctx context.Context, grantID string) error {
	if err := s.grants.DeleteGrant(ctx, grantID); err != nil {
		return err
	}
	s.log.Warn("access.grant.hard_delete", "grant_id", grantID)
	return nil
}

// ListReceived returns grants held by granteeID with their effective status.
func (s *Service) ListReceived(ctx context.Context, granteeID string) ([]Grant, error) {
	return s.list(ctx, GrantFilter{GranteeID: granteeID})
}

// ListGiven returns grants made by grantorID with their effective status.
func (s *Service) ListGiven(ctx context.Context, grantorID string) ([]Grant, error) {
	return s.list(ctx, GrantFilter{GrantorID: grantorID})
}

func (s *Service) list(ctx context.Context, f GrantFilter) ([]Grant, error) {
	if f.GranteeID == "" && f.GrantorID == "" {
		return nil, ErrInvalidInput
	}
	out, err := s.grants.ListGrants(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range out {
		out[i].Status = out[i].StatusAt(now)
	}
	return out, nil
}

func (s *Service) ownedGrant(ctx context.Context, actorID, grantID string) (Grant, error) {
	if actorID == "" || strings.TrimSpace(grantID) == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.grants.FindGrant(ctx, grantID)
	if err != nil {
		return Grant{}, err
	}
	if g.GrantorID != actorID {
		return Grant{}, ErrForbidden
	}
	return g, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
