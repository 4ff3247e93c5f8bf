package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// AuthHandler handles the public signup and signin endpoints.
type AuthHandler struct {
	SigninService *service.SigninService
}

// HandleSignup handles POST /v1/auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"username, email and password are required").WriteError(w)
		return
	}

	user, err := h.SigninService.Signup(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			authsdk.NewAPIError(http.StatusConflict, "user_exists",
				"an account with this username or email already exists").WriteError(w)
		case errors.Is(err, service.ErrPasswordTooWeak):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
				"password does not meet the minimum length").WriteError(w)
		default:
			log.Error("signup failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// HandleSignin handles POST /v1/auth/signin. On success it answers 200
// with the access token; when a second factor is pending it answers 409
// with the challenge token.
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Login == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"login and password are required").WriteError(w)
		return
	}

	resp, challenge, err := h.SigninService.Signin(ctx, service.SigninRequest{
		Login:       req.Login,
		Password:    req.Password,
		DeviceToken: req.DeviceToken,
		Device:      fingerprint.FromRequest(r),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("signin failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	if challenge != nil {
		chErr := &authsdk.ChallengeRequiredError{
			ChallengeToken: challenge.ChallengeToken,
			Method:         challenge.Method.String(),
			ExpiresAt:      challenge.ExpiresAt,
		}
		chErr.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
