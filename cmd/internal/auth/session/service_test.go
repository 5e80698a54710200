package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Flugers27/Memory-book/cmd/identity"
	"github.com/Flugers27/Memory-book/cmd/security/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "remember-them-always"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	users  *identity.MemoryStore
	ledger *MemoryStore
	clock  *clock
	hasher password.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher := password.DefaultConfig()
	hasher.Params.MemoryKiB = 8 * 1024
	hasher.Params.Iterations = 1
	hasher.Params.Parallelism = 1

	f := &fixture{
		users:  identity.NewMemoryStore(),
		ledger: NewMemoryStore(),
		clock:  &clock{t: t0},
		hasher: hasher,
	}
	dummy, err := hasher.Hash("dummy-secret-never-matches")
	require.NoError(t, err)

	f.svc, err = NewService(testConfig(), f.users, f.ledger, hasher,
		WithClock(f.clock.now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDummyHash(dummy),
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) addUser(t *testing.T, id, email, username string) identity.User {
	t.Helper()
	hash, err := f.hasher.Hash(secret)
	require.NoError(t, err)
	u := identity.User{
		ID: id, Email: email, Username: &username, PasswordHash: hash,
		Status: identity.StatusActive, CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, f.users.InsertUser(context.Background(), u))
	return u
}

func (f *fixture) login(t *testing.T, ident, device string) Pair {
	t.Helper()
	p, _, err := f.svc.Login(context.Background(), LoginInput{Identifier: ident, Secret: secret, DeviceLabel: device})
	require.NoError(t, err)
	return p
}

func TestLogin_IssuesPairAndSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()

	p, u, err := f.svc.Login(ctx, LoginInput{
		Identifier: "Anna@Example.com", Secret: secret, DeviceLabel: " phone ", ClientAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)
	assert.Equal(t, t0, *u.LastLoginAt)
	assert.Equal(t, t0.Add(15*time.Minute), p.AccessExpiresAt)
	assert.Equal(t, t0.Add(7*24*time.Hour), p.RefreshExpiresAt)

	claims, err := f.svc.Verify(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.Equal(t, "anna@example.com", claims.Email)

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "phone", rows[0].DeviceLabel)
	assert.Equal(t, "10.0.0.1", rows[0].ClientAddress)
	assert.NotEqual(t, p.RefreshToken, rows[0].TokenDigest)
	assert.Len(t, rows[0].TokenDigest, 64)
}

func TestLogin_ByUsernameAndDefaultDevice(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")

	f.login(t, "ANNA", "")
	rows, err := f.svc.Sessions(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, DefaultDeviceLabel, rows[0].DeviceLabel)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	inactive := f.addUser(t, "u2", "ben@example.com", "ben")
	st := identity.StatusDeactivated
	_, err := f.users.UpdateUser(context.Background(), inactive.ID, identity.UserUpdate{Status: &st})
	require.NoError(t, err)

	for name, in := range map[string]LoginInput{
		"unknown email":    {Identifier: "nobody@example.com", Secret: secret},
		"unknown username": {Identifier: "nobody", Secret: secret},
		"wrong secret":     {Identifier: "anna@example.com", Secret: "not-the-right-one"},
		"inactive":         {Identifier: "ben@example.com", Secret: secret},
		"blank":            {Identifier: "  ", Secret: secret},
	} {
		_, _, err := f.svc.Login(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidCredentials, name)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error(), name)
	}
}

func TestRefresh_SingleUse(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()

	first := f.login(t, "anna@example.com", "phone")
	f.clock.advance(time.Minute)

	second, err := f.svc.Refresh(ctx, RefreshInput{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: first.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: second.RefreshToken})
	require.NoError(t, err)

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "phone", rows[0].DeviceLabel)
}

func TestRefresh_ConcurrentUseHasOneWinner(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	p := f.login(t, "anna@example.com", "phone")

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: p.RefreshToken}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRefresh_Rejects(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()
	p := f.login(t, "anna@example.com", "phone")

	_, err := f.svc.Refresh(ctx, RefreshInput{RefreshToken: p.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken, "access token presented as refresh")

	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidToken)

	st := identity.StatusDeactivated
	_, err = f.users.UpdateUser(ctx, u.ID, identity.UserUpdate{Status: &st})
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: p.RefreshToken})
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestRefresh_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	p := f.login(t, "anna@example.com", "phone")

	f.clock.advance(8 * 24 * time.Hour)
	_, err := f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: p.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_MovesDevice(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()

	phone := f.login(t, "anna@example.com", "phone")
	f.login(t, "anna@example.com", "laptop")

	_, err := f.svc.Refresh(ctx, RefreshInput{RefreshToken: phone.RefreshToken, DeviceLabel: "laptop"})
	require.NoError(t, err)

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "laptop", rows[0].DeviceLabel)
}

func TestLogin_SameDeviceSupersedes(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()

	old := f.login(t, "anna@example.com", "phone")
	f.login(t, "anna@example.com", "phone")

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: old.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutAll_PhoneAndLaptop(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	f.addUser(t, "u2", "ben@example.com", "ben")
	ctx := context.Background()

	phone := f.login(t, "anna@example.com", "phone")
	laptop := f.login(t, "anna@example.com", "laptop")
	f.login(t, "ben@example.com", "phone")

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	n, err := f.svc.LogoutAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, p := range []Pair{phone, laptop} {
		_, err := f.svc.Refresh(ctx, RefreshInput{RefreshToken: p.RefreshToken})
		assert.ErrorIs(t, err, ErrInvalidToken)
	}

	others, err := f.svc.Sessions(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()
	p := f.login(t, "anna@example.com", "phone")

	f.svc.Logout(ctx, p.RefreshToken)
	f.svc.Logout(ctx, p.RefreshToken)
	f.svc.Logout(ctx, "")
	f.svc.Logout(ctx, "garbage")

	rows, err := f.svc.Sessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = f.svc.Refresh(ctx, RefreshInput{RefreshToken: p.RefreshToken})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_ExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	p := f.login(t, "anna@example.com", "phone")

	f.clock.advance(20 * time.Minute)
	_, err := f.svc.Verify(p.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.svc.Verify(p.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token is not an access token")
}

func TestEmailVerificationToken(t *testing.T) {
	f := newFixture(t)
	u := f.addUser(t, "u1", "anna@example.com", "anna")

	raw, exp, err := f.svc.IssueEmailVerification(u)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(24*time.Hour), exp)

	claims, err := f.svc.VerifyEmailToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())

	_, err = f.svc.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeleteExpired(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "anna@example.com", "anna")
	ctx := context.Background()

	f.login(t, "anna@example.com", "phone")
	f.clock.advance(3 * 24 * time.Hour)
	f.login(t, "anna@example.com", "laptop")
	f.clock.advance(5 * 24 * time.Hour)

	n, err := f.svc.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.svc.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewService_RequiresDigestKey(t *testing.T) {
	cfg := testConfig()
	cfg.RequireDigestKey = true
	cfg.DigestKey = []byte("k")
	_, err := NewService(cfg, identity.NewMemoryStore(), NewMemoryStore(), password.DefaultConfig())
	assert.Error(t, err)
}

func TestNormalizeDeviceLabel(t *testing.T) {
	assert.Equal(t, DefaultDeviceLabel, NormalizeDeviceLabel("   "))
	assert.Equal(t, "phone", NormalizeDeviceLabel(" phone "))
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(NormalizeDeviceLabel(string(long))), maxDeviceLabelLen)
}
