// Package identity is the credential store: user records, their password
// digests, and the account operations that flip their flags (register,
// change password, verify email, deactivate).
//
// Users are never physically deleted. Deactivation is a status change so that
// pages and grants authored by the user keep a valid owner.
package identity
