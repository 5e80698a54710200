package authapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/internal/auth/session"
	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
	"github.com/Flugers27/Memory-book/cmd/internal/telemetry"

	"github.com/go-chi/chi/v5"
)

// Handler wires HTTP auth endpoints to the account service and the session authenticator.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts *identity.Service
	sessions *session.Service
	limiter  Limiter

	emailSender EmailSender
	metrics     *telemetry.Metrics
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if sender != nil {
			h.emailSender = sender
		}
	}
}

// WithLimiter sets the login throttle. The default is a process-local LocalLimiter.
func WithLimiter(l Limiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// WithMetrics records throttle hits on m.
func WithMetrics(m *telemetry.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts *identity.Service, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if accounts == nil || sessions == nil {
		return nil, errors.New("authapi: accounts and sessions are required")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:         log,
		cfg:         cfg,
		accounts:    accounts,
		sessions:    sessions,
		emailSender: NoopEmailSender{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.limiter == nil {
		h.limiter = NewLocalLimiter(0, cfg.LoginMaxFailures, cfg.LoginWindow)
	}
	return h, nil
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	requireAuth := RequireAuth(h.sessions, h.log)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Post("/verify_email", h.handleVerifyEmail)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout_all", h.handleLogoutAll)
			r.Post("/change_password", h.handleChangePassword)
			r.Post("/deactivate", h.handleDeactivate)
		})
	})

	r.With(requireAuth).Get("/me", h.handleMe)
	r.With(requireAuth).Get("/me/sessions", h.handleSessions)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	u, err := h.accounts.Register(ctx, identity.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.fail(w, "auth.register", err)
		return
	}
	h.auditAccount(ctx, "auth.register", u.ID, httpx.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())

	tok, exp, err := h.sessions.IssueEmailVerification(u)
	if err != nil {
		h.log.Error("auth.register.verification_token.fail", "err", err, "user_id", u.ID)
	} else {
		h.sendVerification(ctx, u, tok, exp)
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(u), VerificationExpiresAt: exp})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	identifier := loginIdentifier(req.Identifier)
	if identifier == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "identifier and password are required")
		return
	}

	ctx := r.Context()
	ip := httpx.ClientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	keys := throttleKeys(identifier, ip)

	if blocked, retryAfter := h.throttled(ctx, keys); blocked {
		h.auditLoginRateLimited(ctx, ip, ua, identifier, retryAfter)
		httpx.WriteRateLimited(w, retryAfter)
		return
	}

	pair, u, err := h.sessions.Login(ctx, session.LoginInput{
		Identifier:    identifier,
		Secret:        req.Password,
		DeviceLabel:   req.DeviceLabel,
		ClientAddress: httpx.IPString(ip),
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			h.recordFailure(ctx, keys)
			h.auditLoginFailed(ctx, ip, ua, identifier, "invalid_credentials")
		}
		h.fail(w, "auth.login", err)
		return
	}

	if err := h.limiter.Reset(ctx, keys[0].key); err != nil {
		h.log.Warn("auth.login.throttle_reset.fail", "err", err)
	}
	h.auditLoginSuccess(ctx, u.ID, pair.SessionID, ip, ua)

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:    toUserResponse(u),
		Session: toSessionResponse(pair),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	ip := httpx.ClientIP(r, h.cfg.TrustProxy)

	pair, err := h.sessions.Refresh(ctx, session.RefreshInput{
		RefreshToken:  req.RefreshToken,
		DeviceLabel:   req.DeviceLabel,
		ClientAddress: httpx.IPString(ip),
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) || errors.Is(err, session.ErrInactiveAccount) {
			h.auditRefreshRejected(ctx, ip, r.UserAgent(), err.Error())
		}
		h.fail(w, "auth.refresh", err)
		return
	}

	h.auditRefresh(ctx, pair.SessionID, ip, r.UserAgent())
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(pair)})
}

// handleLogout answers 204 for every request, including unknown or malformed tokens.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := httpx.DecodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.log.Debug("auth.logout.decode.fail", "err", err)
	}
	h.sessions.Logout(r.Context(), req.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := CallerID(ctx)

	n, err := h.sessions.LogoutAll(ctx, userID)
	if err != nil {
		h.fail(w, "auth.logout_all", err)
		return
	}

	h.auditLogoutAll(ctx, userID, n, httpx.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	httpx.WriteJSON(w, http.StatusOK, logoutAllResponse{Revoked: n})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	claims, err := h.sessions.VerifyEmailToken(req.Token)
	if err != nil {
		h.fail(w, "auth.verify_email", err)
		return
	}

	ctx := r.Context()
	u, err := h.accounts.MarkVerified(ctx, claims.UserID())
	if err != nil {
		if identity.IsNotFound(err) {
			err = session.ErrInvalidToken
		}
		h.fail(w, "auth.verify_email", err)
		return
	}

	h.auditAccount(ctx, "auth.email_verified", u.ID, httpx.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	httpx.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	userID := CallerID(ctx)
	if err := h.accounts.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, "auth.change_password", err)
		return
	}

	h.auditAccount(ctx, "auth.password_changed", userID, httpx.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := CallerID(ctx)
	if err := h.accounts.Deactivate(ctx, userID); err != nil {
		h.fail(w, "auth.deactivate", err)
		return
	}

	h.auditAccount(ctx, "auth.deactivated", userID, httpx.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Get(r.Context(), CallerID(r.Context()))
	if err != nil {
		h.fail(w, "auth.me", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.Sessions(r.Context(), CallerID(r.Context()))
	if err != nil {
		h.fail(w, "auth.sessions", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSessionsResponse(list))
}

// ---- helpers ----

// fail maps service errors onto the HTTP envelope. Authentication failures
// never say which factor was wrong.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if field, ok := identity.IsConflict(err); ok {
		httpx.WriteError(w, http.StatusConflict, "conflict", fmt.Sprintf("%s already registered", field))
		return
	}

	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, session.ErrTokenExpired):
		httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "token expired")
	case errors.Is(err, session.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
	case errors.Is(err, session.ErrInactiveAccount), errors.Is(err, identity.ErrDeactivated):
		httpx.WriteError(w, http.StatusUnauthorized, "inactive_account", "account is not active")
	case errors.Is(err, identity.ErrWrongPassword):
		httpx.WriteError(w, http.StatusUnauthorized, "wrong_password", "current password is incorrect")
	case identity.IsNotFound(err):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "account not found")
	case identity.IsInvalidInput(err):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
	default:
		h.log.Error(op+".fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func invalidMessage(err error) string {
	var opErr identity.OpError
	if errors.As(err, &opErr) && opErr.Msg != "" {
		return opErr.Msg
	}
	return "invalid input"
}

func (h *Handler) sendVerification(ctx context.Context, u identity.User, tok string, exp time.Time) {
	err := h.emailSender.SendEmailVerification(ctx, EmailVerificationMessage{
		UserID:    u.ID,
		Email:     u.Email,
		Token:     tok,
		ExpiresAt: exp,
	})
	if err != nil {
		h.log.Error("auth.email_verification.send.fail", "err", err, "user_id", u.ID)
	}
}

func loginIdentifier(raw string) string {
	if identity.IsEmailIdentifier(raw) {
		return identity.NormalizeEmail(raw)
	}
	return identity.NormalizeUsername(raw)
}

type throttleKey struct {
	scope string
	key   string
}

// throttleKeys returns the identifier key first, then the client address key when known.
func throttleKeys(identifier string, ip net.IP) []throttleKey {
	keys := []throttleKey{{scope: "identifier", key: "id:" + identifier}}
	if ip != nil {
		keys = append(keys, throttleKey{scope: "ip", key: "ip:" + ip.String()})
	}
	return keys
}

// throttled fails open: a limiter error admits the attempt.
func (h *Handler) throttled(ctx context.Context, keys []throttleKey) (bool, time.Duration) {
	for _, k := range keys {
		blocked, retryAfter, err := h.limiter.Blocked(ctx, k.key)
		if err != nil {
			h.log.Warn("auth.login.throttle.fail", "err", err, "scope", k.scope)
			continue
		}
		if blocked {
			h.metrics.Throttle(k.scope)
			return true, retryAfter
		}
	}
	return false, 0
}

func (h *Handler) recordFailure(ctx context.Context, keys []throttleKey) {
	for _, k := range keys {
		if err := h.limiter.Fail(ctx, k.key); err != nil {
			h.log.Warn("auth.login.throttle_record.fail", "err", err, "scope", k.scope)
		}
	}
}
