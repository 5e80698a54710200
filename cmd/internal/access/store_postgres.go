package access

import (
	"context"
	"fmt"

	"github.com/Flugers27/Memory-book/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const constraintActivePair = "uq_grants_active_pair"

// PostgresStore implements GrantStore over the grants table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ GrantStore = (*PostgresStore)(nil)

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the schema holding the grants table (default "memorybook").
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

const grantColumns = `id, resource_id, grantee_id, grantor_id, can_view, can_edit, status,
	granted_at, expires_at, revoked_at, updated_at`

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "grants") }

func (s *PostgresStore) FindActiveGrant(ctx context.Context, resourceID, granteeID string) (Grant, error) {
	return scanGrantRow(s.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM `+s.table()+`
		  WHERE resource_id = $1 AND grantee_id = $2 AND status = 'active'`,
		resourceID, granteeID))
}

func (s *PostgresStore) FindGrant(ctx context.Context, id string) (Grant, error) {
	return scanGrantRow(s.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM `+s.table()+` WHERE id = $1`, id))
}

// InsertGrant relies on uq_grants_active_pair for the single-active-grant rule.
func (s *PostgresStore) InsertGrant(ctx context.Context, g Grant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+grantColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.ResourceID, g.GranteeID, g.GrantorID, g.CanView, g.CanEdit, string(g.Status),
		g.GrantedAt, g.ExpiresAt, g.RevokedAt, g.UpdatedAt,
	)
	if err == nil {
		return nil
	}
	if c, ok := pgutil.UniqueViolation(err); ok && c == constraintActivePair {
		return ErrDuplicateGrant
	}
	if pgutil.ForeignKeyViolation(err) {
		return ErrNotFound
	}
	return fmt.Errorf("access: insert grant: %w", err)
}

func (s *PostgresStore) UpdateGrant(ctx context.Context, g Grant) (Grant, error) {
	return scanGrantRow(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET can_view = $2, can_edit = $3, expires_at = $4, status = $5, revoked_at = $6, updated_at = $7
		  WHERE id = $1 AND status = 'active'
		RETURNING `+grantColumns,
		g.ID, g.CanView, g.CanEdit, g.ExpiresAt, string(g.Status), g.RevokedAt, g.UpdatedAt))
}

func (s *PostgresStore) DeleteGrant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListGrants(ctx context.Context, f GrantFilter) ([]Grant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+grantColumns+` FROM `+s.table()+`
		  WHERE ($1 = '' OR grantee_id = $1) AND ($2 = '' OR grantor_id = $2)
		  ORDER BY granted_at DESC, id DESC`,
		f.GranteeID, f.GrantorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrantRow(row pgx.Row) (Grant, error) {
	g, err := scanGrant(row)
	if pgutil.NoRows(err) {
		return Grant{}, ErrNotFound
	}
	return g, err
}

func scanGrant(row pgx.Row) (Grant, error) {
	var (
		g      Grant
		status string
	)
	err := row.Scan(&g.ID, &g.ResourceID, &g.GranteeID, &g.GrantorID, &g.CanView, &g.CanEdit, &status,
		&g.GrantedAt, &g.ExpiresAt, &g.RevokedAt, &g.UpdatedAt)
	g.Status = GrantStatus(status)
	return g, err
}
