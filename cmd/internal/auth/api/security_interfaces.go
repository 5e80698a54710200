package authapi

import (
	"context"
	"time"
)

// EmailVerificationMessage is the payload handed to the delivery provider.
type EmailVerificationMessage struct {
	UserID    string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// EmailSender delivers verification tokens. Delivery itself lives outside this service.
type EmailSender interface {
	SendEmailVerification(ctx context.Context, msg EmailVerificationMessage) error
}

// NoopEmailSender drops every message.
type NoopEmailSender struct{}

func (NoopEmailSender) SendEmailVerification(context.Context, EmailVerificationMessage) error {
	return nil
}
