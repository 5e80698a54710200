package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/httpx"
)

// Audit events go to the structured log under the "audit" group. Raw tokens
// and passwords never reach them.

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", ip, ua,
		slog.String("identifier", identifier),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.login.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua, identifier string, retryAfter time.Duration) {
	h.audit(ctx, "auth.login.rate_limited", ip, ua,
		slog.String("identifier", identifier),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) auditRefresh(ctx context.Context, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.refresh.success", ip, ua, slog.String("session_id", sessionID))
}

func (h *Handler) auditRefreshRejected(ctx context.Context, ip net.IP, ua, reason string) {
	h.audit(ctx, "auth.refresh.rejected", ip, ua, slog.String("reason", reason))
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, revoked int64, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout_all", ip, ua,
		slog.String("user_id", userID),
		slog.Int64("revoked", revoked),
	)
}

func (h *Handler) auditAccount(ctx context.Context, action, userID string, ip net.IP, ua string) {
	h.audit(ctx, action, ip, ua, slog.String("user_id", userID))
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	attrs = append(attrs, slog.String("ip", httpx.IPString(ip)))
	if ua = strings.TrimSpace(ua); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	h.log.LogAttrs(ctx, slog.LevelInfo, action, slog.Attr{Key: "audit", Value: slog.GroupValue(attrs...)})
}
