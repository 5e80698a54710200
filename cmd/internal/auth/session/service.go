package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"
	"github.com/Flugers27/Memory-book/cmd/security/token"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("memorybook/session")

// UserStore is the slice of the credential store the authenticator reads and updates.
type UserStore interface {
	FindByID(ctx context.Context, id string) (identity.User, error)
	FindByEmail(ctx context.Context, email string) (identity.User, error)
	FindByUsername(ctx context.Context, username string) (identity.User, error)
	UpdateUser(ctx context.Context, id string, upd identity.UserUpdate) (identity.User, error)
}

// PasswordVerifier checks a secret against a stored digest.
type PasswordVerifier interface {
	Verify(encoded, secret string) (bool, error)
}

// Service is the session authenticator. It is the only component that mints
// tokens or writes the ledger.
type Service struct {
	cfg      Config
	users    UserStore
	store    Store
	verifier PasswordVerifier
	codec    *TokenCodec
	digester token.Digester
	log      *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Service.
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

// WithMetrics records auth events on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDummyHash sets the digest verified when a login names an unknown user,
// so both failure paths cost one password verification.
func WithDummyHash(encoded string) Option {
	return func(s *Service) { s.dummyHash = encoded }
}

// NewService validates cfg and constructs the authenticator.
func NewService(cfg Config, users UserStore, store Store, verifier PasswordVerifier, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if users == nil || store == nil || verifier == nil {
		return nil, errors.New("session: users, store and verifier are required")
	}

	s := &Service{
		cfg:      cfg,
		users:    users,
		store:    store,
		verifier: verifier,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if cfg.RequireDigestKey {
		d, err := token.NewRequiredDigester(cfg.DigestKey, MinSigningKeyBytes)
		if err != nil {
			return nil, err
		}
		s.digester = d
	} else {
		s.digester = token.NewDigester(cfg.DigestKey)
	}
	s.codec = NewTokenCodec(cfg, s.now)
	return s, nil
}

// Pair is the token pair returned by Login and Refresh.
type Pair struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginInput carries the login request.
type LoginInput struct {
	Identifier    string
	Secret        string
	DeviceLabel   string
	ClientAddress string
}

// Login authenticates by email or username and opens a session for the device,
// replacing any previous session on that device.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ Pair, _ identity.User, err error) {
	ctx, span := tracer.Start(ctx, "session.Login")
	defer func() { s.finish(span, "login", err) }()

	u, err := s.lookup(ctx, in.Identifier)
	if err != nil {
		if identity.IsNotFound(err) {
			s.burnVerify(in.Secret)
			return Pair{}, identity.User{}, ErrInvalidCredentials
		}
		return Pair{}, identity.User{}, err
	}

	ok, verr := s.verifier.Verify(u.PasswordHash, in.Secret)
	if verr != nil || !ok || !u.Active() {
		return Pair{}, identity.User{}, ErrInvalidCredentials
	}

	now := s.now()
	u, err = s.users.UpdateUser(ctx, u.ID, identity.UserUpdate{LastLoginAt: &now, Now: now})
	if err != nil {
		return Pair{}, identity.User{}, err
	}

	pair, sess, err := s.issue(u.ID, u.Email, NormalizeDeviceLabel(in.DeviceLabel), in.ClientAddress, now)
	if err != nil {
		return Pair{}, identity.User{}, err
	}
	if err := s.store.InsertSession(ctx, sess); err != nil {
		return Pair{}, identity.User{}, err
	}

	span.SetAttributes(attribute.String("user.id", u.ID))
	s.log.Info("session.login.ok", "user_id", u.ID, "session_id", sess.ID, "device", sess.DeviceLabel)
	return pair, u, nil
}

func (s *Service) lookup(ctx context.Context, identifier string) (identity.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return identity.User{}, identity.ErrNotFound
	}
	if identity.IsEmailIdentifier(identifier) {
		return s.users.FindByEmail(ctx, identity.NormalizeEmail(identifier))
	}
	return s.users.FindByUsername(ctx, identity.NormalizeUsername(identifier))
}

func (s *Service) burnVerify(secret string) {
	if s.dummyHash == "" {
		return
	}
	_, _ = s.verifier.Verify(s.dummyHash, secret)
}

// RefreshInput carries a refresh request. Empty DeviceLabel and ClientAddress
// keep the values of the session being rotated.
type RefreshInput struct {
	RefreshToken  string
	DeviceLabel   string
	ClientAddress string
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: a second use fails with ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (_ Pair, err error) {
	ctx, span := tracer.Start(ctx, "session.Refresh")
	defer func() { s.finish(span, "refresh", err) }()

	claims, perr := s.codec.Parse(in.RefreshToken, KindRefresh)
	if perr != nil {
		return Pair{}, ErrInvalidToken
	}

	digest := s.digester.Digest(strings.TrimSpace(in.RefreshToken))
	var pair Pair

	_, err = s.store.Rotate(ctx, digest, func(old Session) (Session, error) {
		now := s.now()
		if old.UserID != claims.Subject || !token.Equal(old.TokenDigest, digest) || old.Expired(now) {
			return Session{}, ErrInvalidToken
		}

		u, err := s.users.FindByID(ctx, old.UserID)
		if err != nil {
			if identity.IsNotFound(err) {
				return Session{}, ErrInvalidToken
			}
			return Session{}, err
		}
		if !u.Active() {
			return Session{}, ErrInactiveAccount
		}

		device := old.DeviceLabel
		if strings.TrimSpace(in.DeviceLabel) != "" {
			device = NormalizeDeviceLabel(in.DeviceLabel)
		}
		addr := old.ClientAddress
		if in.ClientAddress != "" {
			addr = in.ClientAddress
		}

		p, next, err := s.issue(u.ID, u.Email, device, addr, now)
		if err != nil {
			return Session{}, err
		}
		pair = p
		return next, nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Pair{}, ErrInvalidToken
		}
		return Pair{}, err
	}

	s.log.Info("session.refresh.ok", "user_id", claims.Subject, "session_id", pair.SessionID)
	return pair, nil
}

// Logout deletes the session holding the refresh token. It never fails:
// unknown, expired and malformed tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	ctx, span := tracer.Start(ctx, "session.Logout")
	defer span.End()

	raw := strings.TrimSpace(refreshToken)
	if raw == "" || len(raw) > maxTokenLen {
		s.metrics.AuthEvent("logout", "ok")
		return
	}

	n, err := s.store.DeleteByDigest(ctx, s.digester.Digest(raw))
	if err != nil {
		s.log.Warn("session.logout.store_fail", "err", err)
	}
	s.metrics.AuthEvent("logout", "ok")
	s.log.Debug("session.logout", "deleted", n)
}

// LogoutAll deletes every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) (n int64, err error) {
	ctx, span := tracer.Start(ctx, "session.LogoutAll")
	defer func() { s.finish(span, "logout_all", err) }()

	n, err = s.store.DeleteWhere(ctx, userID, nil)
	if err != nil {
		return 0, err
	}
	s.log.Info("session.logout_all", "user_id", userID, "deleted", n)
	return n, nil
}

// Verify checks an access token without touching storage.
func (s *Service) Verify(accessToken string) (Claims, error) {
	return s.codec.Parse(accessToken, KindAccess)
}

// IssueEmailVerification mints an email_verification token for u.
func (s *Service) IssueEmailVerification(u identity.User) (string, time.Time, error) {
	return s.codec.Mint(KindEmailVerification, u.ID, u.Email, s.cfg.EmailVerificationTTL, s.now())
}

// VerifyEmailToken parses an email_verification token.
func (s *Service) VerifyEmailToken(raw string) (Claims, error) {
	return s.codec.Parse(raw, KindEmailVerification)
}

// DeleteExpired removes sessions past their expiry and returns how many went.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// Sessions lists the user's live sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]Session, error) {
	return s.store.ListByUser(ctx, userID, s.now())
}

func (s *Service) issue(userID, email, device, addr string, now time.Time) (Pair, Session, error) {
	access, accessExp, err := s.codec.Mint(KindAccess, userID, email, s.cfg.AccessTokenTTL, now)
	if err != nil {
		return Pair{}, Session{}, err
	}
	refresh, refreshExp, err := s.codec.Mint(KindRefresh, userID, email, s.cfg.RefreshTokenTTL, now)
	if err != nil {
		return Pair{}, Session{}, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Pair{}, Session{}, err
	}

	sess := Session{
		ID:            id,
		UserID:        userID,
		TokenDigest:   s.digester.Digest(refresh),
		DeviceLabel:   device,
		ClientAddress: addr,
		CreatedAt:     now,
		ExpiresAt:     refreshExp,
	}
	pair := Pair{
		SessionID:        id,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}
	return pair, sess, nil
}

func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.AuthEvent(op, outcome)
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive"
	default:
		return "error"
	}
}
