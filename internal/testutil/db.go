// Package testutil provides an in-memory database with the full schema and
// fixtures shared by the service tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// NewDB opens a private in-memory database, migrated and with foreign keys on.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, conn *sql.DB, email string) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.NewUserRepository(conn).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// Caller returns the identity of user as the auth middleware would.
func Caller(user *models.User) models.Caller {
	return models.Caller{UserID: user.ID, TokenID: uuid.New()}
}
