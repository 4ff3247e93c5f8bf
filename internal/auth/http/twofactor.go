package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// TwoFactorHandler handles second-factor management for a signed-in user.
type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
	UserService      *service.UserService
}

// HandleSettings handles GET /v1/2fa.
func (h *TwoFactorHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	settings, err := h.TwoFactorService.Settings(ctx, userID)
	if err != nil {
		log.Error("failed to load 2fa settings", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, settings)
}

// HandleEnable handles POST /v1/2fa/enable.
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.EnableTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"method must be one of sms, email, authenticator").WriteError(w)
		return
	}

	// The enrollment needs the account's email/username for the setup code
	// destination and the otpauth label.
	user, err := h.UserService.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("failed to load user", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	enroll, err := h.TwoFactorService.Enable(ctx, user, method, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyEnabled):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeAlreadyEnabled,
				"a second factor is already enabled, disable it first").WriteError(w)
		case errors.Is(err, service.ErrPhoneRequired):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
				"a phone number is required for the sms method").WriteError(w)
		default:
			log.Error("2fa enrollment failed", "user_id", userID, "method", method.String(), "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, enroll)
}

// HandleVerifySetup handles POST /v1/2fa/verify-setup. On success the
// factor becomes active and the backup codes come back, shown exactly once.
func (h *TwoFactorHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.VerifySetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	codes, err := h.TwoFactorService.VerifySetup(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnrolled):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeNotEnabled,
				"no enrollment is in progress").WriteError(w)
		case errors.Is(err, service.ErrAlreadyEnabled):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeAlreadyEnabled,
				"a second factor is already enabled").WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidCode,
				"the setup code is invalid or has expired").WriteError(w)
		default:
			log.Error("2fa setup verification failed", "user_id", userID, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// HandleDisable handles DELETE /v1/2fa.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.DisableTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.TwoFactorService.Disable(ctx, userID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnabled):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeNotEnabled,
				"no second factor is enabled").WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidCode,
				"the code is invalid").WriteError(w)
		default:
			log.Error("2fa disable failed", "user_id", userID, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerateBackupCodes handles POST /v1/2fa/backup-codes.
func (h *TwoFactorHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.DisableTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	codes, err := h.TwoFactorService.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnabled):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeNotEnabled,
				"no second factor is enabled").WriteError(w)
		case errors.Is(err, service.ErrInvalidCode):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidCode,
				"the code is invalid").WriteError(w)
		default:
			log.Error("backup code regeneration failed", "user_id", userID, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}
