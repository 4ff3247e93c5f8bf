package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Session is an authenticated session with the Spendlyzer auth service.
// It is created by SDKClient.Signin or PendingChallenge.Verify and holds
// the access token for its lifetime; there is no refresh flow, a session
// that expires must sign in again.
type Session struct {
	client *SDKClient

	accessToken string
	sessionID   string
	deviceToken string
}

// newSession creates a Session from a signin or verify response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	return &Session{
		client:      client,
		accessToken: tokenResp.AccessToken,
		sessionID:   tokenResp.SessionID,
		deviceToken: tokenResp.DeviceToken,
	}
}

// AccessToken returns the bearer token backing this session.
func (s *Session) AccessToken() string { return s.accessToken }

// SessionID returns the server-side identifier of this session.
func (s *Session) SessionID() string { return s.sessionID }

// DeviceToken returns the trusted-device token minted when the signin
// remembered this device, or "" otherwise. Store it and pass it to the
// next Signin to skip the second factor.
func (s *Session) DeviceToken() string { return s.deviceToken }

// TwoFactorSettings returns the account's second-factor configuration.
func (s *Session) TwoFactorSettings(ctx context.Context) (*TwoFactorSettingsResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/2fa", nil, nil)
	if err != nil {
		return nil, err
	}

	var settings TwoFactorSettingsResponse
	if err := decodeJSON(resp, &settings, http.StatusOK); err != nil {
		return nil, err
	}

	return &settings, nil
}

// EnableTwoFactor begins second-factor enrollment. For sms/email a setup
// code is dispatched to the destination; for authenticator the shared
// secret and otpauth URL come back for the user to scan. Either way the
// factor only takes effect after VerifySetup.
func (s *Session) EnableTwoFactor(ctx context.Context, req EnableTwoFactorRequest) (*EnrollResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/2fa/enable", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var enroll EnrollResponse
	if err := decodeJSON(resp, &enroll, http.StatusOK); err != nil {
		return nil, err
	}

	return &enroll, nil
}

// VerifySetup confirms a pending enrollment with the setup or TOTP code
// and returns the freshly minted backup codes. The codes are shown only
// here; the caller must present them to the user for safekeeping.
func (s *Session) VerifySetup(ctx context.Context, code string) (*BackupCodesResponse, error) {
	body, err := json.Marshal(VerifySetupRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/2fa/verify-setup", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var codes BackupCodesResponse
	if err := decodeJSON(resp, &codes, http.StatusOK); err != nil {
		return nil, err
	}

	return &codes, nil
}

// DisableTwoFactor turns the second factor off. The code must be a
// current authenticator code or an unused backup code.
func (s *Session) DisableTwoFactor(ctx context.Context, code string) error {
	body, err := json.Marshal(DisableTwoFactorRequest{Code: code})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/2fa", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// RegenerateBackupCodes replaces the backup-code set after
// re-verification and returns the new codes.
func (s *Session) RegenerateBackupCodes(ctx context.Context, code string) (*BackupCodesResponse, error) {
	body, err := json.Marshal(DisableTwoFactorRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/2fa/backup-codes", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var codes BackupCodesResponse
	if err := decodeJSON(resp, &codes, http.StatusOK); err != nil {
		return nil, err
	}

	return &codes, nil
}

// Sessions lists the account's active sessions, most recently active
// first. The entry backing this Session has IsCurrent set.
func (s *Session) Sessions(ctx context.Context) ([]SessionResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var sessions []SessionResponse
	if err := decodeJSON(resp, &sessions, http.StatusOK); err != nil {
		return nil, err
	}

	return sessions, nil
}

// RevokeSession revokes one session by id. LogoutRequired in the
// response means the caller revoked its own session and must discard
// this Session's token.
func (s *Session) RevokeSession(ctx context.Context, sessionID string) (*RevokeSessionResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
	if err != nil {
		return nil, err
	}

	var revoke RevokeSessionResponse
	if err := decodeJSON(resp, &revoke, http.StatusOK); err != nil {
		return nil, err
	}

	return &revoke, nil
}

// RevokeAllSessions revokes every session of the account, this one
// included, and returns how many were removed.
func (s *Session) RevokeAllSessions(ctx context.Context) (*RevokedCountResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var revoked RevokedCountResponse
	if err := decodeJSON(resp, &revoked, http.StatusOK); err != nil {
		return nil, err
	}

	return &revoked, nil
}

// Signout revokes the session behind this Session's token.
func (s *Session) Signout(ctx context.Context) error {
	_, err := s.RevokeSession(ctx, s.sessionID)
	return err
}

// Devices lists the account's trusted devices, most recently used first.
func (s *Session) Devices(ctx context.Context) ([]DeviceResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/devices", nil, nil)
	if err != nil {
		return nil, err
	}

	var devices []DeviceResponse
	if err := decodeJSON(resp, &devices, http.StatusOK); err != nil {
		return nil, err
	}

	return devices, nil
}

// RevokeDevice removes one trusted device; its token stops skipping the
// second factor immediately.
func (s *Session) RevokeDevice(ctx context.Context, deviceID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/devices/"+url.PathEscape(deviceID), nil, nil)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// RevokeAllDevices removes every trusted device of the account and
// returns how many were removed.
func (s *Session) RevokeAllDevices(ctx context.Context) (*RevokedCountResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/devices", nil, nil)
	if err != nil {
		return nil, err
	}

	var revoked RevokedCountResponse
	if err := decodeJSON(resp, &revoked, http.StatusOK); err != nil {
		return nil, err
	}

	return &revoked, nil
}
