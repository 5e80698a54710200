package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store over the sessions table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the sessions table (default "memorybook").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("session: %w", err)
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: pgutil.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

const sessionColumns = `id, user_id, token_digest, device_label, client_address, created_at, expires_at`

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "sessions") }

// InsertSession stores s, replacing the user's row for the same device.
func (s *PostgresStore) InsertSession(ctx context.Context, sess Session) error {
	return s.replace(ctx, s.pool, sess)
}

// replace upserts on (user_id, device_label) so concurrent logins from one
// device leave a single row instead of racing on the unique index.
func (s *PostgresStore) replace(ctx context.Context, q execer, sess Session) error {
	_, err := q.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id, device_label) DO UPDATE SET
		   id = EXCLUDED.id,
		   token_digest = EXCLUDED.token_digest,
		   client_address = EXCLUDED.client_address,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		sess.ID, sess.UserID, sess.TokenDigest, sess.DeviceLabel, nullIfEmpty(sess.ClientAddress),
		sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("session: insert: %w", err)
	}
	return nil
}

// FindByDigest loads the row holding digest.
func (s *PostgresStore) FindByDigest(ctx context.Context, digest string) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM `+s.table()+` WHERE token_digest = $1`, digest)
	return scanSessionRow(row)
}

// Rotate serializes on SELECT ... FOR UPDATE of the row holding digest. A
// concurrent rotation blocks on the lock and, once the winner commits, finds no row.
func (s *PostgresStore) Rotate(ctx context.Context, digest string, fn RotateFunc) (Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Session{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanSessionRow(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM `+s.table()+` WHERE token_digest = $1 FOR UPDATE`, digest))
	if err != nil {
		return Session{}, err
	}

	next, err := fn(old)
	if err != nil {
		return Session{}, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, old.ID)
	if err != nil {
		return Session{}, fmt.Errorf("session: delete rotated row: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return Session{}, ErrSessionNotFound
	}

	if err := s.replace(ctx, tx, next); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}
	return next, nil
}

// DeleteByDigest deletes the row holding digest, if any.
func (s *PostgresStore) DeleteByDigest(ctx context.Context, digest string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE token_digest = $1`, digest)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteWhere deletes the user's rows, optionally only for one device.
func (s *PostgresStore) DeleteWhere(ctx context.Context, userID string, deviceLabel *string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE user_id = $1 AND ($2::text IS NULL OR device_label = $2)`,
		userID, deviceLabel)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired deletes rows whose expiry is at or before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByUser returns the user's unexpired rows, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM `+s.table()+`
		 WHERE user_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSessionRow(row pgx.Row) (Session, error) {
	sess, err := scanSession(row)
	if pgutil.NoRows(err) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		sess Session
		addr *string
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TokenDigest, &sess.DeviceLabel, &addr,
		&sess.CreatedAt, &sess.ExpiresAt)
	if addr != nil {
		sess.ClientAddress = *addr
	}
	return sess, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
