//go:build integration

// Package pgtest starts a throwaway Postgres for integration tests and applies the migrations.
package pgtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Flugers27/Memory-book/cmd/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	once    sync.Once
	dsn     string
	initErr error
)

// Pool returns a pool on a migrated database shared by the calling test binary.
// Tables are truncated before the pool is handed out.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	once.Do(func() { dsn, initErr = start() })
	require.NoError(t, initErr, "start postgres container")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE memorybook.invites, memorybook.grants, memorybook.pages, memorybook.sessions, memorybook.users`)
	require.NoError(t, err)
	return pool
}

func start() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("memorybook_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", err
	}

	conn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", err
	}

	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return "", err
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		return "", err
	}
	return conn, nil
}
