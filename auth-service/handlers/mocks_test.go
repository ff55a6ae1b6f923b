package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-32-bytes-long-1234567890"

type MockUserRepository struct {
	users     map[string]*models.User
	createErr error
	getErr    error
	mutex     sync.Mutex
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return db.ErrDuplicate
	}
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, exists := m.users[email]
	if !exists {
		return nil, db.ErrNotFound
	}
	return user, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for email, user := range m.users {
		if user.ID == id {
			delete(m.users, email)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *MockUserRepository) count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.users)
}

func setupMockUser(email, password string) (*MockUserRepository, *models.User) {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo.users[email] = user
	return repo, user
}

type memTokenStore struct {
	mutex     sync.Mutex
	tokens    map[uuid.UUID]*models.AccessToken
	createErr error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[uuid.UUID]*models.AccessToken)}
}

func (s *memTokenStore) Create(ctx context.Context, token *models.AccessToken) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.tokens[token.ID] = token
	return nil
}

func (s *memTokenStore) Active(ctx context.Context, id, userID uuid.UUID, now time.Time) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	token, ok := s.tokens[id]
	return ok && token.UserID == userID && token.ExpiresAt.After(now), nil
}

func (s *memTokenStore) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var n int64
	for id, token := range s.tokens {
		if token.UserID == userID {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var n int64
	for id, token := range s.tokens {
		if !token.ExpiresAt.After(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.tokens)
}

func newTestHandler(repo *MockUserRepository) (*Handler, *memTokenStore) {
	store := newMemTokenStore()
	return &Handler{
		UserRepo: repo,
		Tokens:   auth.NewTokens(testSecret, time.Hour, store),
	}, store
}

func issueToken(t *testing.T, handler *Handler, userID uuid.UUID) string {
	t.Helper()
	token, err := handler.Tokens.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}
