package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/validation"
	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxFieldLen    = 255
	minPasswordLen = 8
)

type registerInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (in *registerInput) validate() error {
	errs := validation.Errors{}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	switch {
	case in.Name == "":
		errs.Add("name", "The name field is required.")
	case !validation.MaxLen(in.Name, maxFieldLen):
		errs.Add("name", "The name field must not be greater than 255 characters.")
	}
	validateEmail(errs, in.Email)
	if !validation.MaxLen(in.Email, maxFieldLen) {
		errs.Add("email", "The email field must not be greater than 255 characters.")
	}
	switch {
	case in.Password == "":
		errs.Add("password", "The password field is required.")
	case utf8.RuneCountInString(in.Password) < minPasswordLen:
		errs.Add("password", "The password field must be at least 8 characters.")
	case in.Password != in.PasswordConfirmation:
		errs.Add("password", "The password field confirmation does not match.")
	}
	return errs.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(errs validation.Errors, email string) {
	switch {
	case email == "":
		errs.Add("email", "The email field is required.")
	case !validation.IsEmail(email):
		errs.Add("email", "The email field must be a valid email address.")
	}
}

func (handler *Handler) Register(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		slog.Warn("invalid method for register", "method", request.Method)
		shared.SendError(writer, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
	if !handler.allowed(request) {
		slog.Warn("rate limit exceeded", "path", request.URL.Path)
		shared.SendError(writer, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input registerInput
	if !shared.DecodeJSON(writer, request, &input) {
		return
	}
	if err := input.validate(); err != nil {
		shared.SendValidationErrors(writer, err.(validation.Errors))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		shared.SendError(writer, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
	defer cancel()

	if err := handler.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			shared.SendValidationErrors(writer, validation.Errors{
				"email": {"The email has already been taken."},
			})
			return
		}
		slog.Error("cannot save user", "error", err)
		shared.SendError(writer, "Cannot save user", http.StatusInternalServerError)
		return
	}

	token, err := handler.Tokens.Issue(ctx, user.ID)
	if err != nil {
		slog.Error("error issuing token", "user_id", user.ID, "error", err)
		// the client never learns about the account, so the email must stay free
		if err := handler.UserRepo.Delete(context.WithoutCancel(ctx), user.ID); err != nil {
			slog.Error("error removing user after failed registration", "user_id", user.ID, "error", err)
		}
		shared.SendError(writer, "Cannot create token", http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	shared.SendJSON(writer, http.StatusCreated, tokenResponse{
		Message:     "Registration completed",
		User:        newUserResource(user),
		AccessToken: token,
		TokenType:   "Bearer",
	})
}
