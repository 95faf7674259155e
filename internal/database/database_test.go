package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: poll_votes.poll_id, poll_votes.user_id")))
}

func TestHealthAndClose(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:health?mode=memory"), GormConfig("silent"))
	require.NoError(t, err)
	svc := Wrap(db, "health")

	require.NoError(t, svc.Migrate())

	stats := svc.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "health", stats["database"])
	assert.Equal(t, "0", stats["in_use"])

	require.NoError(t, svc.Close())
	stats = svc.Health()
	assert.Equal(t, "down", stats["status"])
	assert.Contains(t, stats["error"], "db down")
}
