package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/internal/access"
)

// Authorizer is the resolver call every page operation goes through.
type Authorizer interface {
	Require(ctx context.Context, callerID, resourceID string, need access.Need) (access.Resource, access.Decision, error)
}

// Service creates, edits and publishes pages.
type Service struct {
	store Store
	authz Authorizer
	log   *slog.Logger
	now   func() time.Time
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

// NewService constructs a page Service.
func NewService(store Store, authz Authorizer, opts ...Option) *Service {
	s := &Service{store: store, authz: authz, log: slog.Default(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create stores a page owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Page, error) {
	parent := strings.TrimSpace(in.ParentID)
	title, err := checkTitle(in.Title)
	if err != nil {
		return Page{}, err
	}
	if ownerID == "" || parent == "" {
		return Page{}, fmt.Errorf("%w: parent_id is required", ErrInvalidInput)
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Page{}, err
	}
	p := Page{
		ID:        id,
		OwnerID:   ownerID,
		ParentID:  parent,
		Title:     title,
		IsPublic:  in.IsPublic,
		IsDraft:   in.IsDraft == nil || *in.IsDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertPage(ctx, p); err != nil {
		return Page{}, err
	}
	s.log.Info("pages.create", "page_id", p.ID, "parent_id", p.ParentID, "published", p.Published())
	return p, nil
}

// Get returns the page with the caller's decision. The caller needs view access.
func (s *Service) Get(ctx context.Context, callerID, id string) (Page, access.Decision, error) {
	_, d, err := s.authz.Require(ctx, callerID, id, access.NeedView)
	if err != nil {
		return Page{}, d, err
	}
	p, err := s.store.FindPage(ctx, id)
	if err != nil {
		return Page{}, access.Decision{}, err
	}
	return p, d, nil
}

// Update applies patch. The caller needs edit access.
func (s *Service) Update(ctx context.Context, callerID, id string, patch Patch) (Page, error) {
	if _, _, err := s.authz.Require(ctx, callerID, id, access.NeedEdit); err != nil {
		return Page{}, err
	}
	p, err := s.store.FindPage(ctx, id)
	if err != nil {
		return Page{}, err
	}

	if patch.Title != nil {
		if p.Title, err = checkTitle(*patch.Title); err != nil {
			return Page{}, err
		}
	}
	if patch.IsPublic != nil {
		p.IsPublic = *patch.IsPublic
	}
	if patch.IsDraft != nil {
		p.IsDraft = *patch.IsDraft
	}
	p.UpdatedAt = s.now()

	out, err := s.store.UpdatePage(ctx, p)
	if err != nil {
		return Page{}, err
	}
	s.log.Info("pages.update", "page_id", out.ID, "published", out.Published())
	return out, nil
}

// Publish makes the page live, demoting its published siblings.
func (s *Service) Publish(ctx context.Context, callerID, id string) (Page, error) {
	live := false
	return s.Update(ctx, callerID, id, Patch{IsDraft: &live})
}

func checkTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return "", fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLen)
	}
	return title, nil
}
