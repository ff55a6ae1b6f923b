package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/validation"
	"github.com/chepyr/go-task-manager/shared"
	"golang.org/x/crypto/bcrypt"
)

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *loginInput) validate() error {
	errs := validation.Errors{}
	in.Email = normalizeEmail(in.Email)
	validateEmail(errs, in.Email)
	if in.Password == "" {
		errs.Add("password", "The password field is required.")
	}
	return errs.Err()
}

func (handler *Handler) Login(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		slog.Warn("invalid method for login", "method", request.Method)
		shared.SendError(writer, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}
	if !handler.allowed(request) {
		slog.Warn("rate limit exceeded", "path", request.URL.Path)
		shared.SendError(writer, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input loginInput
	if !shared.DecodeJSON(writer, request, &input) {
		return
	}
	if err := input.validate(); err != nil {
		shared.SendValidationErrors(writer, err.(validation.Errors))
		return
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	user, err := handler.UserRepo.GetByEmail(ctx, input.Email)
	if errors.Is(err, db.ErrNotFound) {
		shared.SendError(writer, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("error retrieving user by email", "error", err)
		shared.SendError(writer, "Cannot log in", http.StatusInternalServerError)
		return
	}

	// Compare provided password with stored password hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		slog.Info("invalid password", "user_id", user.ID)
		shared.SendError(writer, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := handler.Tokens.Issue(ctx, user.ID)
	if err != nil {
		slog.Error("error issuing token", "user_id", user.ID, "error", err)
		shared.SendError(writer, "Cannot create token", http.StatusInternalServerError)
		return
	}

	slog.Info("user logged in", "user_id", user.ID)
	shared.SendJSON(writer, http.StatusOK, tokenResponse{
		Message:     "Logged in",
		User:        newUserResource(user),
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// Logout revokes every token of the caller, not only the one presented.
func (handler *Handler) Logout(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		shared.SendError(writer, "Use POST method for logout", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := auth.CallerFromContext(request.Context())
	if !ok {
		shared.SendError(writer, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	revoked, err := handler.Tokens.RevokeAll(ctx, caller.UserID)
	if err != nil {
		slog.Error("error revoking tokens", "user_id", caller.UserID, "error", err)
		shared.SendError(writer, "Cannot log out", http.StatusInternalServerError)
		return
	}
	slog.Info("user logged out", "user_id", caller.UserID, "revoked_tokens", revoked)
	shared.SendJSON(writer, http.StatusOK, messageResponse{Message: "Logged out"})
}

// User returns the caller's profile.
func (handler *Handler) User(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		shared.SendError(writer, "Use GET method", http.StatusMethodNotAllowed)
		return
	}
	caller, ok := auth.CallerFromContext(request.Context())
	if !ok {
		shared.SendError(writer, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	user, err := handler.UserRepo.GetByID(ctx, caller.UserID)
	if errors.Is(err, db.ErrNotFound) {
		shared.SendError(writer, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("error retrieving user", "user_id", caller.UserID, "error", err)
		shared.SendError(writer, "Cannot load user", http.StatusInternalServerError)
		return
	}
	shared.SendJSON(writer, http.StatusOK, newUserResource(user))
}
