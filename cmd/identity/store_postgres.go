package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
// The pool is owned by the caller; the store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the users table (default "memorybook").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, email, username, password_hash, status, verified_at, last_login_at, created_at, updated_at`

func (s *PostgresStore) users() string { return pgutil.Ident(s.schema, "users") }

// InsertUser inserts u. Email and username must already be normalized.
func (s *PostgresStore) InsertUser(ctx context.Context, u User) error {
	const op = "identity.InsertUser"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Username, u.PasswordHash, string(u.Status),
		u.VerifiedAt, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if c, ok := pgutil.UniqueViolation(err); ok {
			return ConflictError{Op: op, Field: conflictField(c)}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindByID loads a user by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.findOne(ctx, "identity.FindByID", "id", id)
}

// FindByEmail loads a user by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, "identity.FindByEmail", "email", NormalizeEmail(email))
}

// FindByUsername loads a user by normalized username.
func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.findOne(ctx, "identity.FindByUsername", "username", NormalizeUsername(username))
}

func (s *PostgresStore) findOne(ctx context.Context, op, column, value string) (User, error) {
	if strings.TrimSpace(value) == "" {
		return User{}, notFound(op)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE `+column+` = $1`, value)
	u, err := scanUser(row)
	if pgutil.NoRows(err) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUser applies upd to the user row and returns the updated record.
func (s *PostgresStore) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	const op = "identity.UpdateUser"

	now := upd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var status *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.users()+` SET
		     password_hash = COALESCE($2, password_hash),
		     status        = COALESCE($3, status),
		     verified_at   = COALESCE($4, verified_at),
		     last_login_at = COALESCE($5, last_login_at),
		     updated_at    = $6
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, upd.PasswordHash, status, upd.VerifiedAt, upd.LastLoginAt, now,
	)
	u, err := scanUser(row)
	if pgutil.NoRows(err) {
		return User{}, notFound(op)
	}
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		status string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &status,
		&u.VerifiedAt, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	u.Status = Status(status)
	return u, err
}

func conflictField(constraint string) string {
	switch {
	case strings.Contains(constraint, "username"):
		return "username"
	case strings.Contains(constraint, "email"):
		return "email"
	default:
		return "unique"
	}
}
