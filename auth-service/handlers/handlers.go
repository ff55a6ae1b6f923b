package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/ratelimit"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
)

// TokenService issues, verifies and revokes bearer tokens.
type TokenService interface {
	auth.Verifier
	Issue(ctx context.Context, userID uuid.UUID) (string, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error)
}

type Handler struct {
	UserRepo    db.UserRepositoryInterface
	Tokens      TokenService
	RateLimiter *ratelimit.RateLimiter
}

type userResource struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResource(u *models.User) userResource {
	return userResource{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type tokenResponse struct {
	Message     string       `json:"message"`
	User        userResource `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Routes registers the auth endpoints on mux.
func (handler *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/register", handler.Register)
	mux.HandleFunc("/login", handler.Login)
	mux.HandleFunc("/logout", auth.Require(handler.Tokens, handler.Logout))
	mux.HandleFunc("/user", auth.Require(handler.Tokens, handler.User))
}

// allowed reports whether the client is under the attempt limit. A nil
// limiter allows everything.
func (handler *Handler) allowed(request *http.Request) bool {
	return handler.RateLimiter == nil || handler.RateLimiter.Allow(ratelimit.ClientIP(request))
}
