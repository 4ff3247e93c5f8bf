package http

import (
	"errors"
	"net/http"

	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// SessionsHandler handles the session registry endpoints.
type SessionsHandler struct {
	SessionService *service.SessionService
}

// callerSession extracts the user id and session id from the verified
// access token.
func callerSession(r *http.Request) (userID, sessionID string, ok bool) {
	ctx := r.Context()
	userID, uok := ctx.Value(httpx.CtxKeyUserID).(string)
	claims, cok := ctx.Value(httpx.CtxKeyClaims).(jwtx.Claims)
	if !uok || !cok || userID == "" || claims.SID == "" {
		return "", "", false
	}
	return userID, claims.SID, true
}

// HandleList handles GET /v1/sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, sid, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	views, err := h.SessionService.List(ctx, userID, sid)
	if err != nil {
		log.Error("failed to list sessions", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, views)
}

// HandleRevoke handles DELETE /v1/sessions/{id}.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, sid, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	sessionID := r.PathValue("id")
	result, err := h.SessionService.Revoke(ctx, userID, sessionID, sid)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		log.Error("failed to revoke session", "user_id", userID, "session_id", sessionID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleRevokeAll handles DELETE /v1/sessions.
func (h *SessionsHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	count, err := h.SessionService.RevokeAll(ctx, userID)
	if err != nil {
		log.Error("failed to revoke sessions", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedCountResponse{RevokedCount: count})
}
