package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/chepyr/go-task-manager/internal/auth"
	"github.com/chepyr/go-task-manager/internal/policy"
	"github.com/chepyr/go-task-manager/internal/ratelimit"
	"github.com/chepyr/go-task-manager/internal/validation"
	"github.com/chepyr/go-task-manager/shared"
	"github.com/chepyr/go-task-manager/shared/models"
	"github.com/chepyr/go-task-manager/tasks-service/service"
)

type Handler struct {
	Tasks       *service.TaskService
	Categories  *service.CategoryService
	Verifier    auth.Verifier
	RateLimiter *ratelimit.RateLimiter
	WSHub       *WSHub
}

// AuthMiddleware rejects requests without a live bearer token and exposes the
// caller to next through the request context.
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return auth.Require(h.Verifier, next)
}

func callerFrom(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
	}
	return caller, ok
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeJSON requires a JSON Content-Type before decoding the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return false
	}
	return shared.DecodeJSON(w, r, dst)
}

// sendServiceError maps a service error to its response. what names the
// resource in 404 and 500 messages.
func sendServiceError(w http.ResponseWriter, err error, what string) {
	var fieldErrs validation.Errors
	switch {
	case errors.As(err, &fieldErrs):
		shared.SendValidationErrors(w, fieldErrs)
	case errors.Is(err, policy.ErrForbidden):
		shared.SendError(w, "This action is unauthorized.", http.StatusForbidden)
	case errors.Is(err, service.ErrNotFound):
		shared.SendError(w, what+" not found", http.StatusNotFound)
	default:
		slog.Error("request failed", "resource", what, "error", err)
		shared.SendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Routes registers the task, category and websocket endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/tasks", h.AuthMiddleware(h.HandleTasks))
	mux.HandleFunc("/tasks/", h.AuthMiddleware(h.HandleTaskByID))
	mux.HandleFunc("/categories", h.AuthMiddleware(h.HandleCategories))
	mux.HandleFunc("/categories/", h.AuthMiddleware(h.HandleCategoryByID))
	mux.HandleFunc("/ws", h.AuthMiddleware(h.HandleWebSocket))
}
