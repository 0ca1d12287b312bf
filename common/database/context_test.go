package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryContext_HasDeadline(t *testing.T) {
	ctx, cancel := QueryContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultQueryTimeout), deadline, time.Second)
}

func TestWriteContext_HasDeadline(t *testing.T) {
	ctx, cancel := WriteContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultWriteTimeout), deadline, time.Second)
}

func TestPostgresURL(t *testing.T) {
	got := PostgresURL("db", 5432, "leadgate", "lead user", "p@ss", "disable")
	assert.Equal(t, "postgres://lead%20user:p%40ss@db:5432/leadgate?sslmode=disable", got)
}
