package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chepyr/go-task-manager/internal/validation"
)

const maxBodyBytes = 1 << 20 // 1MB

// DecodeJSON reads a JSON body into dst. A field of the wrong JSON type is a
// 422 on that field; any other decoding failure is a 400. It writes the error
// response itself and returns false when the body is unusable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		errs := validation.Errors{}
		errs.Add(typeErr.Field, fmt.Sprintf("The %s field has an invalid type.", typeErr.Field))
		SendValidationErrors(w, errs)
		return false
	}
	SendError(w, "Invalid JSON body", http.StatusBadRequest)
	return false
}
