package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/security/password"
)

// SessionRevoker ends every session of a user. The session authenticator implements it.
type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID string) (int64, error)
}

// Service implements the account operations on top of a Store.
type Service struct {
	store    Store
	hasher   password.Hasher
	sessions SessionRevoker
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessionRevoker makes password changes and deactivation end all sessions.
func WithSessionRevoker(r SessionRevoker) ServiceOption {
	return func(s *Service) { s.sessions = r }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs an account Service.
func NewService(store Store, hasher password.Hasher, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Store exposes the underlying credential store.
func (s *Service) Store() Store { return s.store }

// RegisterInput describes a registration request.
type RegisterInput struct {
	Email    string
	Username *string
	Password string
}

// Register creates an active, unverified user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	email := NormalizeEmail(in.Email)
	if !validEmail(email) {
		return User{}, invalid(op, "a valid email is required")
	}

	var username *string
	if in.Username != nil && strings.TrimSpace(*in.Username) != "" {
		n := NormalizeUsername(*in.Username)
		if !validUsername(n) {
			return User{}, invalid(op, "username must be 3-32 characters of a-z 0-9 _ . -")
		}
		username = &n
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) ||
			errors.Is(err, password.ErrPasswordTooLong) ||
			errors.Is(err, password.ErrWeakPassword) {
			return User{}, invalid(op, err.Error())
		}
		return User{}, err
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return User{}, err
	}

	s.log.Info("identity.register.ok", "user_id", u.ID)
	return u, nil
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	return s.store.FindByID(ctx, userID)
}

// ChangePassword replaces the password after checking the current one, then ends
// every session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	const op = "identity.ChangePassword"

	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active() {
		return OpError{Op: op, Kind: ErrDeactivated}
	}

	ok, err := s.hasher.Verify(u.PasswordHash, current)
	if err != nil || !ok {
		return OpError{Op: op, Kind: ErrWrongPassword}
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return invalid(op, err.Error())
	}

	if _, err := s.store.UpdateUser(ctx, userID, UserUpdate{PasswordHash: &hash, Now: s.now()}); err != nil {
		return err
	}

	if err := s.revokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("identity.password.changed", "user_id", userID)
	return nil
}

// Deactivate soft-disables the account and ends every session.
// Deactivating an already deactivated account is a no-op.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	const op = "identity.Deactivate"

	st := StatusDeactivated
	if _, err := s.store.UpdateUser(ctx, userID, UserUpdate{Status: &st, Now: s.now()}); err != nil {
		return err
	}

	if err := s.revokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("identity.deactivated", "user_id", userID)
	return nil
}

// MarkVerified records email verification. The first verification time is kept.
func (s *Service) MarkVerified(ctx context.Context, userID string) (User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u.Verified() {
		return u, nil
	}

	now := s.now()
	return s.store.UpdateUser(ctx, userID, UserUpdate{VerifiedAt: &now, Now: now})
}

func (s *Service) revokeSessions(ctx context.Context, userID string) error {
	if s.sessions == nil {
		return nil
	}
	n, err := s.sessions.LogoutAll(ctx, userID)
	if err != nil {
		s.log.Error("identity.revoke_sessions.fail", "user_id", userID, "err", err)
		return err
	}
	s.log.Debug("identity.revoke_sessions", "user_id", userID, "sessions", n)
	return nil
}
