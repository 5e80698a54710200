//go:build integration

package pages

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/identity/ids"
	"github.com/Flugers27/Memory-book/cmd/internal/access"
	"github.com/Flugers27/Memory-book/cmd/internal/pgtest"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgUser(t *testing.T, pool *pgxpool.Pool, email string) string {
	t.Helper()
	users, err := identity.NewPostgresStore(pool)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	id, err := ids.NewULID(now)
	require.NoError(t, err)
	require.NoError(t, users.InsertUser(context.Background(), identity.User{
		ID: id, Email: email, PasswordHash: "$argon2id$stub", Status: identity.StatusActive, CreatedAt: now, UpdatedAt: now,
	}))
	return id
}

func pgServices(t *testing.T) (*Service, *access.Service, *PostgresStore, *pgxpool.Pool) {
	t.Helper()
	pool := pgtest.Pool(t)
	st, err := NewPostgresStore(pool)
	require.NoError(t, err)
	grants, err := access.NewPostgresStore(pool)
	require.NoError(t, err)
	az, err := access.NewService(grants, st)
	require.NoError(t, err)
	return NewService(st, az), az, st, pool
}

func TestPostgres_PublishDemotesSibling(t *testing.T) {
	svc, _, st, pool := pgServices(t)
	ctx := context.Background()
	owner := pgUser(t, pool, "owner@example.com")

	a, err := svc.Create(ctx, owner, CreateInput{ParentID: "m1", Title: "A", IsDraft: draft(false)})
	require.NoError(t, err)
	b, err := svc.Create(ctx, owner, CreateInput{ParentID: "m1", Title: "B"})
	require.NoError(t, err)

	_, err = svc.Publish(ctx, owner, b.ID)
	require.NoError(t, err)

	a, err = st.FindPage(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, a.IsDraft)
}

func TestPostgres_ConcurrentPublishLeavesOneLive(t *testing.T) {
	svc, _, _, pool := pgServices(t)
	ctx := context.Background()
	owner := pgUser(t, pool, "owner@example.com")

	var pageIDs []string
	for _, title := range []string{"A", "B", "C", "D"} {
		p, err := svc.Create(ctx, owner, CreateInput{ParentID: "m1", Title: title})
		require.NoError(t, err)
		pageIDs = append(pageIDs, p.ID)
	}

	var wg sync.WaitGroup
	for _, id := range pageIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Publish(ctx, owner, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	var live int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM memorybook.pages WHERE parent_id = 'm1' AND NOT is_draft`).Scan(&live))
	assert.Equal(t, 1, live)
}

func TestPostgres_DemotionScopedToOwner(t *testing.T) {
	svc, _, st, pool := pgServices(t)
	ctx := context.Background()
	alice := pgUser(t, pool, "alice@example.com")
	mallory := pgUser(t, pool, "mallory@example.com")

	a, err := svc.Create(ctx, alice, CreateInput{ParentID: "m1", Title: "A", IsPublic: true, IsDraft: draft(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, mallory, CreateInput{ParentID: "m1", Title: "B", IsDraft: draft(false)})
	require.NoError(t, err)

	a, err = st.FindPage(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, a.IsDraft)

	var live int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT count(*) FROM memorybook.pages WHERE parent_id = 'm1' AND NOT is_draft`).Scan(&live))
	assert.Equal(t, 2, live)
}

func TestPostgres_GrantLifecycle(t *testing.T) {
	svc, az, _, pool := pgServices(t)
	ctx := context.Background()
	owner := pgUser(t, pool, "owner@example.com")
	viewer := pgUser(t, pool, "viewer@example.com")

	p, err := svc.Create(ctx, owner, CreateInput{ParentID: "m1", Title: "A"})
	require.NoError(t, err)

	g, err := az.Grant(ctx, owner, access.GrantInput{ResourceID: p.ID, GranteeID: viewer, CanView: true})
	require.NoError(t, err)

	_, err = az.Grant(ctx, owner, access.GrantInput{ResourceID: p.ID, GranteeID: viewer, CanView: true})
	assert.ErrorIs(t, err, access.ErrDuplicateGrant)

	_, d, err := svc.Get(ctx, viewer, p.ID)
	require.NoError(t, err)
	assert.Equal(t, access.ReasonGrant, d.Reason)

	_, err = az.Revoke(ctx, owner, g.ID)
	require.NoError(t, err)
	_, _, err = svc.Get(ctx, viewer, p.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)

	_, err = az.Grant(ctx, owner, access.GrantInput{ResourceID: p.ID, GranteeID: "no-such-user", CanView: true})
	assert.ErrorIs(t, err, access.ErrNotFound)

	given, err := az.ListGiven(ctx, owner)
	require.NoError(t, err)
	require.Len(t, given, 1)
	assert.Equal(t, access.GrantRevoked, given[0].Status)

	require.NoError(t, az.HardDelete(ctx, g.ID))
	assert.ErrorIs(t, az.HardDelete(ctx, g.ID), access.ErrNotFound)
}
