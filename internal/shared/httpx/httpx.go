// Package httpx holds the JSON response helpers shared by all module APIs.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/hospital-urgencias/clinops/internal/shared/errors"
)

// WriteJSON writes data as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response, mapping AppError to its HTTP status
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus == http.StatusTooManyRequests {
			if retry, ok := appErr.Details["retry_after_seconds"]; ok {
				w.Header().Set("Retry-After", retry)
			}
		}
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
