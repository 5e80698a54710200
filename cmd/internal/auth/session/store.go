package session

import (
	"context"
	"strings"
	"time"
)

// DefaultDeviceLabel is recorded when a client does not name its device.
const DefaultDeviceLabel = "default"

const maxDeviceLabelLen = 128

// Session is one ledger row: the digest of a live refresh token bound to a user and device.
type Session struct {
	ID            string
	UserID        string
	TokenDigest   string
	DeviceLabel   string
	ClientAddress string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }

// RotateFunc receives the locked row being consumed and returns its replacement.
// Returning an error aborts the rotation and leaves the ledger unchanged.
type RotateFunc func(old Session) (Session, error)

// Store is the token ledger.
//
// At most one row exists per (UserID, DeviceLabel): InsertSession removes any
// row for the same pair in the same transaction as the insert.
type Store interface {
	InsertSession(ctx context.Context, s Session) error
	FindByDigest(ctx context.Context, digest string) (Session, error)

	// Rotate locks the row holding digest, asks fn for the replacement, deletes
	// the old row and inserts the new one atomically. Concurrent rotations of the
	// same digest serialize; all but the first see ErrSessionNotFound.
	Rotate(ctx context.Context, digest string, fn RotateFunc) (Session, error)

	DeleteByDigest(ctx context.Context, digest string) (int64, error)
	// DeleteWhere deletes the user's rows, only the given device's when deviceLabel is non-nil.
	DeleteWhere(ctx context.Context, userID string, deviceLabel *string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error)
}

// NormalizeDeviceLabel trims the label, bounds its length and substitutes
// DefaultDeviceLabel for blanks.
func NormalizeDeviceLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return DefaultDeviceLabel
	}
	if r := []rune(label); len(r) > maxDeviceLabelLen {
		label = string(r[:maxDeviceLabelLen])
	}
	return label
}
