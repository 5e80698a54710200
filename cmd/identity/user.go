package identity

import "time"

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDeactivated
}

// User is the security principal. Email and Username are stored normalized.
type User struct {
	ID           string
	Email        string
	Username     *string
	PasswordHash string
	Status       Status

	VerifiedAt  *time.Time
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the account may authenticate.
func (u User) Active() bool { return u.Status == StatusActive }

// Verified reports whether the email address has been confirmed.
func (u User) Verified() bool { return u.VerifiedAt != nil }

// UserUpdate names the fields a store update may change. Nil fields are left as-is.
type UserUpdate struct {
	PasswordHash *string
	Status       *Status
	VerifiedAt   *time.Time
	LastLoginAt  *time.Time
	Now          time.Time
}

func (u UserUpdate) apply(dst *User) {
	if u.PasswordHash != nil {
		dst.PasswordHash = *u.PasswordHash
	}
	if u.Status != nil {
		dst.Status = *u.Status
	}
	if u.VerifiedAt != nil {
		t := *u.VerifiedAt
		dst.VerifiedAt = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		dst.LastLoginAt = &t
	}
	if !u.Now.IsZero() {
		dst.UpdatedAt = u.Now
	}
}
