// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/models"
)

// NewDB opens a fresh, migrated SQLite database private to the test. The pool
// holds a single connection, so code under test must run every statement of
// a transaction through the transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Wrap(db, "test").Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t testing.TB, db *gorm.DB, name, locality string, role models.Role) *models.User {
	t.Helper()

	u := &models.User{
		Name:     name,
		Email:    strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
		Password: "$2a$04$placeholderplaceholderplaceholderplaceholderplacehol",
		Role:     role,
		Locality: locality,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// Reload fetches the current row for u.
func Reload[T any](t testing.TB, db *gorm.DB, id int) *T {
	t.Helper()

	var v T
	if err := db.First(&v, id).Error; err != nil {
		t.Fatalf("reload %T %d: %v", v, id, err)
	}
	return &v
}
