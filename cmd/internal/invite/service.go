// Package invite implements page share links: a holder of edit rights mints
// an opaque token that turns into a grant for whoever redeems it.
package invite

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/internal/access"
	"github.com/Flugers27/Memory-book/cmd/security/token"
)

const (
	defaultTokenBytes = 32
	defaultTTL        = 7 * 24 * time.Hour
	maxTTL            = 90 * 24 * time.Hour
	maxNoteLen        = 512
)

// Invite is a share link for one page.
type Invite struct {
	ID         string
	ResourceID string
	CreatedBy  string
	CanView    bool
	CanEdit    bool
	// GrantExpiresAt is copied onto every grant the invite produces.
	GrantExpiresAt *time.Time
	CreatedAt      time.Time
	ExpiresAt      time.Time
	MaxUses        int
	UsedCount      int
	RevokedAt      *time.Time
	Note           *string
	ConsumedAt     *time.Time
	ConsumedBy     *string
}

// ActiveAt reports whether the invite can still be redeemed at now.
func (i Invite) ActiveAt(now time.Time) bool {
	return i.RevokedAt == nil && i.ExpiresAt.After(now) && i.UsedCount < i.MaxUses
}

// CreateInput describes invite creation.
type CreateInput struct {
	ResourceID     string
	CanView        bool
	CanEdit        bool
	GrantExpiresAt *time.Time
	TTL            time.Duration
	MaxUses        int
	Note           *string
}

// Granter is the slice of the access service invites depend on.
type Granter interface {
	Require(ctx context.Context, callerID, resourceID string, need access.Need) (access.Resource, access.Decision, error)
	Grant(ctx context.Context, grantorID string, in access.GrantInput) (access.Grant, error)
	Revoke(ctx context.Context, actorID, grantID string) (access.Grant, error)
}

// Service manages invite creation, redemption and revocation.
type Service struct {
	store      Store
	access     Granter
	digester   token.Digester
	tokenBytes int
	log        *slog.Logger
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithTokenBytes sets the length of generated invite tokens in bytes.
func WithTokenBytes(n int) Option {
	return func(s *Service) error {
		if n < 16 {
			return ErrInvalidInput
		}
		s.tokenBytes = n
		return nil
	}
}

// WithDigester sets how tokens are hashed before storage.
func WithDigester(d token.Digester) Option {
	return func(s *Service) error {
		s.digester = d
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, granter Granter, opts ...Option) (*Service, error) {
	if store == nil || granter == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		store:      store,
		access:     granter,
		tokenBytes: defaultTokenBytes,
		log:        slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Create mints an invite for a page the caller can edit and returns it with
// its plain token. The token is never stored or shown again.
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (Invite, string, error) {
	in.ResourceID = strings.TrimSpace(in.ResourceID)
	if callerID == "" || in.ResourceID == "" {
		return Invite{}, "", fmt.Errorf("%w: page is required", ErrInvalidInput)
	}
	if !in.CanView && !in.CanEdit {
		return Invite{}, "", fmt.Errorf("%w: invite must allow view or edit", ErrInvalidInput)
	}
	ttl := in.TTL
	switch {
	case ttl == 0:
		ttl = defaultTTL
	case ttl < 0 || ttl > maxTTL:
		return Invite{}, "", fmt.Errorf("%w: ttl must be in (0, %s]", ErrInvalidInput, maxTTL)
	}
	maxUses := in.MaxUses
	switch {
	case maxUses == 0:
		maxUses = 1
	case maxUses < 0:
		return Invite{}, "", fmt.Errorf("%w: max_uses must be positive", ErrInvalidInput)
	}
	note := trimPtr(in.Note)
	if note != nil && len(*note) > maxNoteLen {
		return Invite{}, "", fmt.Errorf("%w: note is too long", ErrInvalidInput)
	}

	res, _, err := s.access.Require(ctx, callerID, in.ResourceID, access.NeedEdit)
	if err != nil {
		return Invite{}, "", err
	}

	now := s.now()
	raw, err := newOpaqueToken(s.tokenBytes)
	if err != nil {
		return Invite{}, "", err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Invite{}, "", err
	}

	inv, err := s.store.Create(ctx, CreateRecord{
		Invite: Invite{
			ID:             id,
			ResourceID:     res.ID,
			CreatedBy:      callerID,
			CanView:        in.CanView || in.CanEdit,
			CanEdit:        in.CanEdit,
			GrantExpiresAt: utcPtr(in.GrantExpiresAt),
			CreatedAt:      now,
			ExpiresAt:      now.Add(ttl),
			MaxUses:        maxUses,
			Note:           note,
		},
		TokenHash: s.digester.Digest(raw),
	})
	if err != nil {
		return Invite{}, "", err
	}
	s.log.Info("invite.create", "invite_id", inv.ID, "resource_id", inv.ResourceID, "max_uses", inv.MaxUses)
	return inv, raw, nil
}

// Redeem turns an active invite into a grant for callerID, issued in the name
// of the invite's creator. The use is counted only when the grant succeeds.
func (s *Service) Redeem(ctx context.Context, callerID, raw string) (access.Grant, error) {
	raw = strings.TrimSpace(raw)
	if callerID == "" || raw == "" {
		return access.Grant{}, ErrInvalidInput
	}
	hash := s.digester.Digest(raw)

	inv, err := s.store.FindByTokenHash(ctx, hash)
	if err != nil {
		return access.Grant{}, err
	}
	now := s.now()
	if !inv.ActiveAt(now) {
		return access.Grant{}, ErrNotActive
	}
	if inv.CreatedBy == callerID {
		return access.Grant{}, fmt.Errorf("%w: cannot redeem your own invite", ErrInvalidInput)
	}

	g, err := s.access.Grant(ctx, inv.CreatedBy, access.GrantInput{
		ResourceID: inv.ResourceID,
		GranteeID:  callerID,
		CanView:    inv.CanView,
		CanEdit:    inv.CanEdit,
		ExpiresAt:  inv.GrantExpiresAt,
	})
	if err != nil {
		s.log.Warn("invite.redeem.fail", "invite_id", inv.ID, "err", err)
		return access.Grant{}, err
	}

	if _, err := s.store.Consume(ctx, ConsumeRecord{TokenHash: hash, ConsumedBy: callerID, Now: now}); err != nil {
		// Lost the last use to a concurrent redeem; take the grant back.
		if _, rerr := s.access.Revoke(ctx, inv.CreatedBy, g.ID); rerr != nil {
			s.log.Error("invite.redeem.rollback.fail", "invite_id", inv.ID, "grant_id", g.ID, "err", rerr)
		}
		return access.Grant{}, err
	}

	s.log.Info("invite.redeem", "invite_id", inv.ID, "grant_id", g.ID)
	return g, nil
}

// Revoke disables an invite. Only its creator may do so; revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, callerID, inviteID string) (Invite, error) {
	inv, err := s.owned(ctx, callerID, inviteID)
	if err != nil {
		return Invite{}, err
	}
	if inv.RevokedAt != nil {
		return inv, nil
	}
	out, err := s.store.Revoke(ctx, inv.ID, s.now())
	if err != nil {
		return Invite{}, err
	}
	s.log.Info("invite.revoke", "invite_id", out.ID)
	return out, nil
}

// List returns the invites of a page the caller can edit.
func (s *Service) List(ctx context.Context, callerID, resourceID string) ([]Invite, error) {
	if _, _, err := s.access.Require(ctx, callerID, resourceID, access.NeedEdit); err != nil {
		return nil, err
	}
	return s.store.ListByResource(ctx, resourceID)
}

func (s *Service) owned(ctx context.Context, callerID, inviteID string) (Invite, error) {
	inviteID = strings.TrimSpace(inviteID)
	if callerID == "" || inviteID == "" {
		return Invite{}, ErrInvalidInput
	}
	inv, err := s.store.FindByID(ctx, inviteID)
	if err != nil {
		return Invite{}, err
	}
	if inv.CreatedBy != callerID {
		return Invite{}, ErrForbidden
	}
	return inv, nil
}

func newOpaqueToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = defaultTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
