// Package testutil provides a throwaway database and fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"medlink-server/internal/models"
)

// Password is the plain-text password of every user created by CreateUser.
const Password = "password123"

// NewDB returns a migrated SQLite database that lives for the duration of
// the test. A single connection serializes transactions the way row locks
// do on MySQL and PostgreSQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "medlink.db") + "?_pragma=busy_timeout(5000)"
	db, err := models.InitDB(models.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// CreateUser inserts an active user with the given role and its profile.
func CreateUser(t testing.TB, db *gorm.DB, role models.Role, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:  username,
		Email:     username + "@medlink.test",
		FirstName: username,
		LastName:  "Test",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, user.SetPassword(Password))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return models.CreateProfileFor(tx, user)
	}))
	return user
}
