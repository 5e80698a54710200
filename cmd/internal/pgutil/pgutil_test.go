package pgutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchema(t *testing.T) {
	s, err := CheckSchema("  memorybook ")
	require.NoError(t, err)
	assert.Equal(t, "memorybook", s)

	for _, bad := range []string{"", "   ", "1abc", "a-b", `x"; drop table users; --`} {
		_, err := CheckSchema(bad)
		assert.Error(t, err, bad)
	}
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"memorybook"."users"`, Ident("memorybook", "users"))
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "UQ_Users_Email"})
	c, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "uq_users_email", c)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	_, ok = UniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}

func TestForeignKeyViolationAndNoRows(t *testing.T) {
	assert.True(t, ForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, ForeignKeyViolation(errors.New("x")))
	assert.True(t, NoRows(fmt.Errorf("q: %w", pgx.ErrNoRows)))
}
