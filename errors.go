package authflow

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in JSON error bodies
const (
	ErrCodeMissingField  = "missing_field"
	ErrCodeUsernameTaken = "username_taken"
	ErrCodeInvalidCreds  = "invalid_credentials"
	ErrCodeServerError   = "server_error"
)

// AuthError is a rejection rendered for an API client
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}

func (e *AuthError) Error() string { return e.Message }

// rejectionError maps a rejection message onto an error code and status
func rejectionError(message string) (*AuthError, int) {
	switch message {
	case MsgUsernameTaken:
		return NewAuthError(ErrCodeUsernameTaken, message, "username"), http.StatusConflict
	case MsgMissingCredentials:
		return NewAuthError(ErrCodeMissingField, message, ""), http.StatusBadRequest
	case MsgPasswordTooLong:
		return NewAuthError(ErrCodeInvalidCreds, message, "password"), http.StatusBadRequest
	case MsgPasswordIncorrect:
		return NewAuthError(ErrCodeInvalidCreds, message, "password"), http.StatusUnauthorized
	}
	return NewAuthError(ErrCodeInvalidCreds, message, "username"), http.StatusUnauthorized
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
