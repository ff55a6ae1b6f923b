package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/shared/models"
)

type Verifier interface {
	Verify(ctx context.Context, raw string) (models.Caller, error)
}

type callerKey struct{}

func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(models.Caller)
	return caller, ok
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

/*
Require resolves the bearer token to a caller and puts it in the request
context. Requests without a usable token never reach next.
*/
func Require(verifier Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		caller, err := verifier.Verify(r.Context(), raw)
		if errors.Is(err, ErrInvalidToken) {
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if err != nil {
			slog.Error("verify token", "error", err)
			shared.SendError(w, "Cannot verify token", http.StatusInternalServerError)
			return
		}
		next(w, r.WithContext(WithCaller(r.Context(), caller)))
	}
}
