package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PendingChallenge is a signin attempt waiting on its second factor. It
// carries the short-lived challenge token that authorises the send-code
// and verify endpoints for this attempt only.
type PendingChallenge struct {
	client         *SDKClient
	challengeToken string

	// Method is the second factor to complete ("sms", "email", "authenticator")
	Method string

	// ExpiresAt is when the challenge lapses and signin must restart
	ExpiresAt time.Time
}

// SendCode asks the service to dispatch a fresh verification code. Only
// valid for the sms and email methods, and subject to a resend cooldown.
func (p *PendingChallenge) SendCode(ctx context.Context) (*SendCodeResponse, error) {
	resp, err := p.client.doRequest(ctx, http.MethodPost, "/v1/auth/2fa/send-code", nil,
		map[string]string{"Authorization": "Bearer " + p.challengeToken})
	if err != nil {
		return nil, err
	}

	var sendResp SendCodeResponse
	if err := decodeJSON(resp, &sendResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &sendResp, nil
}

// Verify submits the code and, on success, returns the authenticated
// Session. Set rememberDevice to have the service mint a trusted-device
// token that skips the second factor on future signins from this device.
func (p *PendingChallenge) Verify(ctx context.Context, code string, rememberDevice bool) (*Session, error) {
	body, err := json.Marshal(VerifyRequest{
		Code:           code,
		RememberDevice: rememberDevice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.client.doRequest(ctx, http.MethodPost, "/v1/auth/2fa/verify", bytes.NewReader(body),
		map[string]string{
			"Authorization": "Bearer " + p.challengeToken,
			"Content-Type":  "application/json",
		})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return newSession(p.client, &tokenResp), nil
}
