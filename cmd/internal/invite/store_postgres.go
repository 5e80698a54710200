package invite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists invites in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default "memorybook").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
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
		return nil, ErrInvalidInput
	}
	return st, nil
}

const inviteColumns = `id, resource_id, created_by, can_view, can_edit, grant_expires_at, created_at,
	expires_at, max_uses, used_count, revoked_at, note, consumed_at, consumed_by`

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "invites") }

func scanInvite(row pgx.Row) (Invite, error) {
	var out Invite
	err := row.Scan(
		&out.ID,
		&out.ResourceID,
		&out.CreatedBy,
		&out.CanView,
		&out.CanEdit,
		&out.GrantExpiresAt,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.MaxUses,
		&out.UsedCount,
		&out.RevokedAt,
		&out.Note,
		&out.ConsumedAt,
		&out.ConsumedBy,
	)
	if pgutil.NoRows(err) {
		return Invite{}, ErrNotFound
	}
	return out, err
}

// Create inserts a new invite record.
func (s *PostgresStore) Create(ctx context.Context, in CreateRecord) (Invite, error) {
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.TokenHash) == "" || in.MaxUses <= 0 {
		return Invite{}, ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, token_hash, resource_id, created_by, can_view, can_edit, grant_expires_at,
		     created_at, expires_at, max_uses, used_count, note
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)`,
		in.ID,
		in.TokenHash,
		in.ResourceID,
		in.CreatedBy,
		in.CanView,
		in.CanEdit,
		in.GrantExpiresAt,
		in.CreatedAt,
		in.ExpiresAt,
		in.MaxUses,
		in.Note,
	)
	if err != nil {
		if _, dup := pgutil.UniqueViolation(err); dup {
			return Invite{}, fmt.Errorf("%w: duplicate invite", ErrInvalidInput)
		}
		if pgutil.ForeignKeyViolation(err) {
			return Invite{}, ErrNotFound
		}
		return Invite{}, err
	}

	out := in.Invite
	out.UsedCount = 0
	return out, nil
}

// FindByTokenHash fetches an invite by token hash.
func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	return scanInvite(s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM `+s.table()+` WHERE token_hash = $1`, tokenHash))
}

// FindByID fetches an invite by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Invite, error) {
	return scanInvite(s.pool.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM `+s.table()+` WHERE id = $1`, id))
}

// ListByResource returns a page's invites, newest first.
func (s *PostgresStore) ListByResource(ctx context.Context, resourceID string) ([]Invite, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+inviteColumns+` FROM `+s.table()+` WHERE resource_id = $1 ORDER BY created_at DESC, id DESC`,
		resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Consume increments used_count and marks last consumption.
func (s *PostgresStore) Consume(ctx context.Context, in ConsumeRecord) (Invite, error) {
	if strings.TrimSpace(in.TokenHash) == "" || in.ConsumedBy == "" {
		return Invite{}, ErrInvalidInput
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	out, err := scanInvite(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET used_count = used_count + 1,
		        consumed_at = $1,
		        consumed_by = $2
		  WHERE token_hash = $3
		    AND revoked_at IS NULL
		    AND expires_at > $1
		    AND used_count < max_uses
		RETURNING `+inviteColumns,
		in.Now,
		in.ConsumedBy,
		in.TokenHash,
	))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Invite{}, err
	}

	// Distinguish not-found vs not-active.
	if _, selErr := s.FindByTokenHash(ctx, in.TokenHash); selErr != nil {
		return Invite{}, selErr
	}
	return Invite{}, ErrNotActive
}

// Revoke stamps revoked_at once; later calls return the row unchanged.
func (s *PostgresStore) Revoke(ctx context.Context, id string, now time.Time) (Invite, error) {
	return scanInvite(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET revoked_at = COALESCE(revoked_at, $2)
		  WHERE id = $1
		RETURNING `+inviteColumns,
		id, now))
}
