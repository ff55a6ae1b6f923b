package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

func TestUserRepository_Create(t *testing.T) {
	db := setupTestDB(t)

	repo := NewUserRepository(db)
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test",
		Email:        "test_1@example.com",
		PasswordHash: "password",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// verify user was created
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", user.Email).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query user: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 user, got %d", count)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	insertUser(t, db, "dup@example.com")

	now := time.Now().UTC()
	err := NewUserRepository(db).Create(context.Background(), &models.User{
		ID:           uuid.New(),
		Name:         "Other",
		Email:        "dup@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db := setupTestDB(t)
	user := insertUser(t, db, "test_1@example.com")

	fetchedUser, err := NewUserRepository(db).GetByEmail(context.Background(), user.Email)
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if fetchedUser.ID != user.ID {
		t.Errorf("Expected ID %v, got %v", user.ID, fetchedUser.ID)
	}
	if fetchedUser.Name != user.Name {
		t.Errorf("Expected name %v, got %v", user.Name, fetchedUser.Name)
	}
	if fetchedUser.PasswordHash != user.PasswordHash {
		t.Errorf("Expected password hash %v, got %v", user.PasswordHash, fetchedUser.PasswordHash)
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	user := insertUser(t, db, "byid@example.com")

	got, err := NewUserRepository(db).GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Email != user.Email {
		t.Errorf("Expected email %v, got %v", user.Email, got.Email)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.GetByEmail(context.Background(), "nonexistent@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByEmail: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID: expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	user := insertUser(t, db, "gone@example.com")

	if err := repo.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}
