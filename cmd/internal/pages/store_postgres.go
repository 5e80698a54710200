package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/access"
	"github.com/Flugers27/Memory-book/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the pages table. Publishing writes take
// a transaction-scoped advisory lock on (owner, parent) before demoting
// siblings; uq_pages_published_per_parent backs the rule up.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the schema holding the pages table (default "memorybook").
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

const pageColumns = `id, owner_id, parent_id, title, is_public, is_draft, created_at, updated_at`

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "pages") }

func (s *PostgresStore) FindResource(ctx context.Context, id string) (access.Resource, error) {
	p, err := s.FindPage(ctx, id)
	if err != nil {
		return access.Resource{}, err
	}
	return p.Resource(), nil
}

func (s *PostgresStore) FindPage(ctx context.Context, id string) (Page, error) {
	p, err := scanPage(s.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM `+s.table()+` WHERE id = $1`, id))
	if pgutil.NoRows(err) {
		return Page{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) InsertPage(ctx context.Context, p Page) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if p.Published() {
			if _, err := s.demoteTx(ctx, tx, p.OwnerID, p.ParentID, p.ID, p.UpdatedAt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table()+` (`+pageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.OwnerID, p.ParentID, p.Title, p.IsPublic, p.IsDraft, p.CreatedAt, p.UpdatedAt)
		if pgutil.ForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	})
}

func (s *PostgresStore) UpdatePage(ctx context.Context, p Page) (Page, error) {
	var out Page
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if p.Published() {
			var owner, parent string
			err := tx.QueryRow(ctx, `SELECT owner_id, parent_id FROM `+s.table()+` WHERE id = $1`, p.ID).Scan(&owner, &parent)
			if pgutil.NoRows(err) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if _, err := s.demoteTx(ctx, tx, owner, parent, p.ID, p.UpdatedAt); err != nil {
				return err
			}
		}

		var err error
		out, err = scanPage(tx.QueryRow(ctx,
			`UPDATE `+s.table()+` SET title = $2, is_public = $3, is_draft = $4, updated_at = $5
			  WHERE id = $1
			RETURNING `+pageColumns,
			p.ID, p.Title, p.IsPublic, p.IsDraft, p.UpdatedAt))
		if pgutil.NoRows(err) {
			return ErrNotFound
		}
		return err
	})
	return out, err
}

func (s *PostgresStore) DemoteSiblings(ctx context.Context, ownerID, parentID, exceptID string, now time.Time) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = s.demoteTx(ctx, tx, ownerID, parentID, exceptID, now)
		return err
	})
	return n, err
}

func (s *PostgresStore) demoteTx(ctx context.Context, tx pgx.Tx, ownerID, parentID, exceptID string, now time.Time) (int64, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || '/' || $2::text))`, ownerID, parentID); err != nil {
		return 0, fmt.Errorf("pages: lock parent: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE `+s.table()+` SET is_draft = true, updated_at = $4
		  WHERE owner_id = $1 AND parent_id = $2 AND id <> $3 AND NOT is_draft`,
		ownerID, parentID, exceptID, now)
	if err != nil {
		return 0, fmt.Errorf("pages: demote siblings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanPage(row pgx.Row) (Page, error) {
	var p Page
	err := row.Scan(&p.ID, &p.OwnerID, &p.ParentID, &p.Title, &p.IsPublic, &p.IsDraft, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
