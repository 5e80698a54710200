package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResources map[string]Resource

func (f fakeResources) FindResource(_ context.Context, id string) (Resource, error) {
	r, ok := f[id]
	if !ok {
		return Resource{}, ErrNotFound
	}
	return r, nil
}

type failingGrants struct{ *MemoryStore }

func (failingGrants) FindActiveGrant(context.Context, string, string) (Grant, error) {
	return Grant{}, errors.New("db down")
}

func newTestService(t *testing.T, at *time.Time) (*Service, fakeResources) {
	t.Helper()
	res := fakeResources{
		"p1": {ID: "p1", OwnerID: "g", ParentID: "m1", IsPublic: true, IsDraft: true},
		"p2": {ID: "p2", OwnerID: "g", ParentID: "m1", IsPublic: true},
	}
	svc, err := NewService(NewMemoryStore(), res,
		WithClock(func() time.Time { return *at }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return svc, res
}

func TestGrant_PastExpiryIsImmediatelyExpired(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true, ExpiresAt: tp(now.Add(-time.Hour))})
	require.NoError(t, err)

	_, d, err := svc.ResolveByID(ctx, "v", "p1")
	require.NoError(t, err)
	assert.False(t, d.HasAccess)
	assert.Equal(t, ReasonExpired, d.Reason)

	_, _, err = svc.Require(ctx, "v", "p1", NeedView)
	reason, ok := DenialReason(err)
	require.True(t, ok)
	assert.Equal(t, ReasonExpired, reason)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestGrant_DuplicateUntilRevoked(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()
	in := GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true}

	first, err := svc.Grant(ctx, "g", in)
	require.NoError(t, err)

	_, err = svc.Grant(ctx, "g", in)
	assert.ErrorIs(t, err, ErrDuplicateGrant)

	_, err = svc.Revoke(ctx, "g", first.ID)
	require.NoError(t, err)

	at = now.Add(time.Minute)
	second, err := svc.Grant(ctx, "g", in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := svc.ListGiven(ctx, "g")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, GrantActive, history[0].Status)
	assert.Equal(t, GrantRevoked, history[1].Status)
}

func TestGrant_Validation(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v"})
	assert.ErrorIs(t, err, ErrInvalidInput, "no flags")

	_, err = svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "g", CanView: true})
	assert.ErrorIs(t, err, ErrInvalidInput, "self grant")

	_, err = svc.Grant(ctx, "g", GrantInput{ResourceID: "missing", GranteeID: "v", CanView: true})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Grant(ctx, "stranger", GrantInput{ResourceID: "p2", GranteeID: "v", CanView: true})
	assert.ErrorIs(t, err, ErrForbidden, "public viewer cannot grant")
}

func TestGrant_EditorMayGrantButNotToOwner(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "ed", CanEdit: true})
	require.NoError(t, err)

	g, err := svc.Grant(ctx, "ed", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true})
	require.NoError(t, err)
	assert.Equal(t, "ed", g.GrantorID)

	_, err = svc.Grant(ctx, "ed", GrantInput{ResourceID: "p1", GranteeID: "g", CanView: true})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGrant_EditImpliesView(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)

	g, err := svc.Grant(context.Background(), "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanEdit: true})
	require.NoError(t, err)
	assert.True(t, g.CanView)

	_, d, err := svc.Require(context.Background(), "v", "p1", NeedEdit)
	require.NoError(t, err)
	assert.Equal(t, ReasonGrant, d.Reason)
}

func TestMutations_OnlyByGrantor(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "ed", CanEdit: true})
	require.NoError(t, err)
	byEditor, err := svc.Grant(ctx, "ed", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true})
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, "g", byEditor.ID)
	assert.ErrorIs(t, err, ErrForbidden, "resource owner is not the grantor")

	_, err = svc.UpdateGrant(ctx, "v", byEditor.ID, GrantPatch{CanEdit: ptr(true)})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Revoke(ctx, "ed", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateGrant(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	g, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true, ExpiresAt: tp(now.Add(time.Hour))})
	require.NoError(t, err)

	at = now.Add(time.Minute)
	up, err := svc.UpdateGrant(ctx, "g", g.ID, GrantPatch{CanEdit: ptr(true), ClearExpiry: true})
	require.NoError(t, err)
	assert.True(t, up.CanEdit)
	assert.Nil(t, up.ExpiresAt)
	assert.Equal(t, at, up.UpdatedAt)

	_, err = svc.UpdateGrant(ctx, "g", g.ID, GrantPatch{CanView: ptr(false), CanEdit: ptr(false)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Revoke(ctx, "g", g.ID)
	require.NoError(t, err)
	_, err = svc.UpdateGrant(ctx, "g", g.ID, GrantPatch{CanEdit: ptr(false)})
	assert.ErrorIs(t, err, ErrNotFound, "revoked grants are history")
}

func TestRevoke_IdempotentAndKeepsHistory(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	g, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true})
	require.NoError(t, err)

	r1, err := svc.Revoke(ctx, "g", g.ID)
	require.NoError(t, err)
	r2, err := svc.Revoke(ctx, "g", g.ID)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, GrantRevoked, r1.Status)
	require.NotNil(t, r1.RevokedAt)

	_, d, err := svc.ResolveByID(ctx, "v", "p1")
	require.NoError(t, err)
	assert.Equal(t, ReasonNoAccess, d.Reason)

	received, err := svc.ListReceived(ctx, "v")
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestHardDelete(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	g, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true})
	require.NoError(t, err)

	require.NoError(t, svc.HardDelete(ctx, g.ID))
	assert.ErrorIs(t, svc.HardDelete(ctx, g.ID), ErrNotFound)

	received, err := svc.ListReceived(ctx, "v")
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestListReceived_ReportsExpiry(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)
	ctx := context.Background()

	_, err := svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true, ExpiresAt: tp(now.Add(time.Hour))})
	require.NoError(t, err)

	at = now.Add(2 * time.Hour)
	got, err := svc.ListReceived(ctx, "v")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, GrantExpired, got[0].Status)

	_, err = svc.Grant(ctx, "g", GrantInput{ResourceID: "p1", GranteeID: "v", CanView: true})
	assert.ErrorIs(t, err, ErrDuplicateGrant, "expired but unrevoked grant still occupies the pair")
}

func TestRequire_Insufficient(t *testing.T) {
	at := now
	svc, _ := newTestService(t, &at)

	_, d, err := svc.Require(context.Background(), "stranger", "p2", NeedEdit)
	assert.True(t, d.HasAccess)
	reason, ok := DenialReason(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInsufficient, reason)
}

func TestResolve_OwnerAndPublicSkipGrantStore(t *testing.T) {
	res := fakeResources{"p2": {ID: "p2", OwnerID: "g", IsPublic: true}, "p3": {ID: "p3", OwnerID: "g"}}
	svc, err := NewService(failingGrants{NewMemoryStore()}, res)
	require.NoError(t, err)
	ctx := context.Background()

	_, d, err := svc.ResolveByID(ctx, "g", "p3")
	require.NoError(t, err)
	assert.Equal(t, ReasonOwner, d.Reason)

	_, d, err = svc.ResolveByID(ctx, "x", "p2")
	require.NoError(t, err)
	assert.Equal(t, ReasonPublic, d.Reason)

	_, _, err = svc.ResolveByID(ctx, "x", "p3")
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
