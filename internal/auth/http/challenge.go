package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// ChallengeHandler handles the second-factor step of signin. Both
// endpoints are authorised by the short-lived challenge token; the
// challenge row id travels as its sid claim.
type ChallengeHandler struct {
	ChallengeService *service.ChallengeService
}

// challengeID extracts the challenge row id from the verified token.
func challengeID(r *http.Request) (string, bool) {
	claims, ok := r.Context().Value(httpx.CtxKeyClaims).(jwtx.Claims)
	if !ok || claims.SID == "" {
		return "", false
	}
	return claims.SID, true
}

// HandleSendCode handles POST /v1/auth/2fa/send-code.
func (h *ChallengeHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	chID, ok := challengeID(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	expiresAt, err := h.ChallengeService.SendCode(ctx, chID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound), errors.Is(err, service.ErrChallengeExpired):
			authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeChallengeExpired,
				"the challenge has expired, sign in again").WriteError(w)
		case errors.Is(err, service.ErrMethodNotCodeBased):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
				"codes for this method are generated by the authenticator app").WriteError(w)
		case errors.Is(err, service.ErrResendTooSoon):
			authsdk.NewAPIError(http.StatusTooManyRequests, authsdk.ErrorCodeResendTooSoon,
				"a code was sent recently, wait before requesting another").WriteError(w)
		case errors.Is(err, notify.ErrDeliveryFailed):
			authsdk.NewAPIError(http.StatusBadGateway, authsdk.ErrorCodeDeliveryFailed,
				"the verification code could not be delivered").WriteError(w)
		default:
			log.Error("send code failed", "challenge_id", chID, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.SendCodeResponse{ExpiresAt: expiresAt})
}

// HandleVerify handles POST /v1/auth/2fa/verify.
func (h *ChallengeHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	chID, ok := challengeID(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Code == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"code is required").WriteError(w)
		return
	}

	resp, err := h.ChallengeService.Verify(ctx, chID, req.Code, req.RememberDevice, fingerprint.FromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound), errors.Is(err, service.ErrChallengeExpired):
			authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeChallengeExpired,
				"the challenge has expired, sign in again").WriteError(w)
		case errors.Is(err, service.ErrTooManyAttempts):
			authsdk.NewAPIError(http.StatusTooManyRequests, authsdk.ErrorCodeTooManyAttempts,
				"too many failed attempts, sign in again").WriteError(w)
		case errors.Is(err, service.ErrCodeMismatch),
			errors.Is(err, service.ErrCodeExpired),
			errors.Is(err, service.ErrCodeAlreadyUsed),
			errors.Is(err, service.ErrNoVerificationCode):
			authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidCode,
				"the code is invalid or no longer usable").WriteError(w)
		default:
			log.Error("challenge verify failed", "challenge_id", chID, "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
