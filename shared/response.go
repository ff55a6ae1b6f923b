package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func SendError(w http.ResponseWriter, message string, status int) {
	SendJSON(w, status, errorResponse{Error: message})
}

// SendValidationErrors writes a 422 with the per-field messages.
func SendValidationErrors(w http.ResponseWriter, errs map[string][]string) {
	SendJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:  "validation failed",
		Errors: errs,
	})
}

func SendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}
