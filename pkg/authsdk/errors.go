package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spendlyzer/auth/pkg/httpx"
)

// Error codes shared between the service and its clients.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeInsufficientScope  = "insufficient_scope"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeServerError        = "server_error"
	ErrorCodeChallengeRequired  = "challenge_required"
	ErrorCodeChallengeExpired   = "challenge_expired"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeResendTooSoon      = "resend_too_soon"
	ErrorCodeDeliveryFailed     = "delivery_failed"
	ErrorCodeAlreadyEnabled     = "already_enabled"
	ErrorCodeNotEnabled         = "not_enabled"
)

// APIError is the service's standard error envelope. It implements the
// error interface and is used both by HTTP handlers (to write responses)
// and by the SDK client (to surface errors).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g., "invalid_code")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// Predefined errors for the common failure modes.
var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid credentials",
	}

	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid, expired or revoked",
	}

	ErrInsufficientScope = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeInsufficientScope,
		Description: "the access token does not have the required scopes",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "the requested resource does not exist",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewAPIError creates an APIError with a custom description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// ChallengeRequiredError is returned from signin when the password was
// correct but a second factor must be completed. It is sent with HTTP 409
// Conflict: the request was valid but the account's 2fa state requires a
// further step.
type ChallengeRequiredError struct {
	// ChallengeToken authorises the 2fa endpoints for this signin attempt
	ChallengeToken string `json:"challenge_token"`

	// Method is the second factor to complete ("sms", "email", "authenticator")
	Method string `json:"method"`

	// ExpiresAt is when the challenge lapses and signin must restart
	ExpiresAt time.Time `json:"expires_at"`
}

// Error implements the error interface.
func (e *ChallengeRequiredError) Error() string {
	return fmt.Sprintf("second factor required: method=%s", e.Method)
}

// WriteError writes the challenge as a 409 Conflict in the standard
// error envelope, extended with the challenge fields.
func (e *ChallengeRequiredError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             ErrorCodeChallengeRequired,
		"error_description": "a second factor is required to complete signin",
		"challenge_token":   e.ChallengeToken,
		"method":            e.Method,
		"expires_at":        e.ExpiresAt,
	})
}

// parseErrorResponse turns a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Challenge handoff (409 Conflict)
	if resp.StatusCode == http.StatusConflict {
		var chResp struct {
			Error          string    `json:"error"`
			ChallengeToken string    `json:"challenge_token"`
			Method         string    `json:"method"`
			ExpiresAt      time.Time `json:"expires_at"`
		}
		if err := json.Unmarshal(body, &chResp); err == nil {
			if chResp.Error == ErrorCodeChallengeRequired && chResp.ChallengeToken != "" {
				return &ChallengeRequiredError{
					ChallengeToken: chResp.ChallengeToken,
					Method:         chResp.Method,
					ExpiresAt:      chResp.ExpiresAt,
				}
			}
		}
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
