package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/colligo/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps an error from the service layer onto an HTTP
// status: not-found is 404, validation is 400, throttling is 429,
// everything else 500.
func WriteServiceError(w http.ResponseWriter, err error) error {
	var ve *models.ValidationError
	switch {
	case models.IsNotFound(err):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ve):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case models.IsRateLimited(err):
		return WriteError(w, http.StatusTooManyRequests, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
