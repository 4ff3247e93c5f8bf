package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the Spendlyzer auth service. It provides the
// unauthenticated operations (signup, signin, health, JWKS) and creates
// authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new auth service client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Signup registers a new account.
func (c *SDKClient) Signup(ctx context.Context, req SignupRequest) (*UserResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signup", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}

	return &user, nil
}

// Signin performs the password step. On success it returns an
// authenticated Session. When the account has a second factor enabled the
// service answers 409 Conflict and Signin returns a PendingChallenge
// instead; complete it with SendCode/Verify. Exactly one of the two
// return values is non-nil on a nil error.
func (c *SDKClient) Signin(ctx context.Context, req SigninRequest) (*Session, *PendingChallenge, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/signin", bytes.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, nil, err
	}

	var tokenResp TokenResponse
	err = decodeJSON(resp, &tokenResp, http.StatusOK)
	if err == nil {
		return newSession(c, &tokenResp), nil, nil
	}

	if chErr, ok := err.(*ChallengeRequiredError); ok {
		return nil, &PendingChallenge{
			client:         c,
			challengeToken: chErr.ChallengeToken,
			Method:         chErr.Method,
			ExpiresAt:      chErr.ExpiresAt,
		}, nil
	}

	return nil, nil, err
}

// NewSessionFromToken creates a Session from a previously issued access
// token, e.g. one stored by the caller across restarts.
func (c *SDKClient) NewSessionFromToken(accessToken, sessionID string) *Session {
	return &Session{
		client:      c,
		accessToken: accessToken,
		sessionID:   sessionID,
	}
}

// GetLiveness checks whether the service process is up.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetReadiness checks whether the service can serve traffic. A degraded
// service answers 503 which surfaces as an *APIError.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// GetJWKS fetches the service's public signing keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}
