// Package token computes the server-side digests of refresh tokens.
//
// Raw refresh tokens are handed to the client exactly once and never persisted.
// The ledger stores HMAC-SHA256(token, key) when a digest key is configured and
// SHA-256(token) otherwise. Output is always 64 hex characters.
package token
