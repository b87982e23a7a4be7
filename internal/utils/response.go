package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-grouporder/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) error {
	return WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError renders err as an error envelope. Domain errors keep their
// message and kind; anything else is reported as an internal error without
// leaking details.
func WriteError(w http.ResponseWriter, message string, err error) error {
	status := apperr.HTTPStatus(err)
	resp := ErrorResponse(message, "internal server error")
	if kind := apperr.KindOf(err); kind != "" {
		resp.Error = err.Error()
		resp.Kind = string(kind)
	}
	return WriteJSON(w, status, resp)
}
