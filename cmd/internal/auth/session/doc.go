// Package session is the session authenticator: it verifies passwords, mints
// signed access/refresh token pairs, rotates refresh tokens on use, and revokes
// sessions.
//
// Tokens are HS256 JWTs carrying sub, email, type, iat, exp (plus iss and jti).
// Access tokens are checked statelessly. Refresh tokens are single-use: the
// ledger stores only their digest, one row per (user, device), and a successful
// refresh replaces the row inside one store transaction.
package session
