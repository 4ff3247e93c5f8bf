package http

import (
	"errors"
	"net/http"

	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/httpx"
	"github.com/spendlyzer/auth/pkg/slogx"
)

// DevicesHandler handles the trusted-device registry endpoints.
type DevicesHandler struct {
	DeviceService  *service.DeviceService
	SessionService *service.SessionService
}

// HandleList handles GET /v1/devices.
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, sid, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	// The caller's session knows which trusted device (if any) it came
	// through, which is what flags IsCurrent in the list.
	var currentDeviceID *string
	if sess, err := h.SessionService.Get(ctx, sid); err == nil {
		currentDeviceID = sess.TrustedDeviceID
	}

	views, err := h.DeviceService.List(ctx, userID, currentDeviceID)
	if err != nil {
		log.Error("failed to list trusted devices", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, views)
}

// HandleRevoke handles DELETE /v1/devices/{id}.
func (h *DevicesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	deviceID := r.PathValue("id")
	if err := h.DeviceService.Revoke(ctx, userID, deviceID); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			authsdk.ErrNotFound.WriteError(w)
			return
		}
		log.Error("failed to revoke trusted device", "user_id", userID, "device_id", deviceID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeAll handles DELETE /v1/devices.
func (h *DevicesHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _, ok := callerSession(r)
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	count, err := h.DeviceService.RevokeAll(ctx, userID)
	if err != nil {
		log.Error("failed to revoke trusted devices", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedCountResponse{RevokedCount: count})
}
