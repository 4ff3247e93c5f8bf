package authsdk

import (
	"time"

	"github.com/spendlyzer/auth/pkg/jwtx"
)

// ErrorResponse is the standard error envelope on the wire.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SigninRequest carries the password step of signin. DeviceToken is the
// opaque trusted-device token from a previous "remember this device".
type SigninRequest struct {
	Login       string `json:"login"`
	Password    string `json:"password"`
	DeviceToken string `json:"device_token,omitempty"`
}

// TokenResponse is the success payload of signin and challenge
// verification. DeviceToken is only set when the device was remembered
// and is shown exactly once.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	SessionID   string `json:"session_id"`
	DeviceToken string `json:"device_token,omitempty"`
}

// SendCodeResponse reports when the freshly dispatched code expires.
type SendCodeResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// VerifyRequest completes a 2fa challenge. Code may be a dispatched
// 6-digit code, an authenticator code, or a backup code.
type VerifyRequest struct {
	Code           string `json:"code"`
	RememberDevice bool   `json:"remember_device,omitempty"`
}

// TwoFactorSettingsResponse is the account owner's 2fa configuration.
type TwoFactorSettingsResponse struct {
	Enabled         bool    `json:"enabled"`
	Method          *string `json:"method,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	BackupCodesLeft int     `json:"backup_codes_left"`
	PendingSetup    bool    `json:"pending_setup"`
}

// EnableTwoFactorRequest begins enrollment. Phone is required for sms.
type EnableTwoFactorRequest struct {
	Method string `json:"method"`
	Phone  string `json:"phone,omitempty"`
}

// EnrollResponse is returned when enrollment begins. Secret and
// OTPAuthURL are set for the authenticator method; SetupSent means a
// setup code was dispatched for sms/email.
type EnrollResponse struct {
	Method     string `json:"method"`
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauth_url,omitempty"`
	SetupSent  bool   `json:"setup_sent,omitempty"`
}

// VerifySetupRequest confirms enrollment with the setup or TOTP code.
type VerifySetupRequest struct {
	Code string `json:"code"`
}

// BackupCodesResponse carries freshly minted backup codes. They are
// shown exactly once and never retrievable afterwards.
type BackupCodesResponse struct {
	Codes []string `json:"backup_codes"`
}

// DisableTwoFactorRequest turns the factor off after re-verification.
type DisableTwoFactorRequest struct {
	Code string `json:"code"`
}

// SessionResponse is one entry of the session list.
type SessionResponse struct {
	ID           string    `json:"id"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsCurrent    bool      `json:"is_current"`
}

// RevokeSessionResponse reports whether the caller revoked the session
// behind their own token and must discard it.
type RevokeSessionResponse struct {
	LogoutRequired bool `json:"logout_required"`
}

// RevokedCountResponse reports how many records a revoke-all removed.
type RevokedCountResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// DeviceResponse is one entry of the trusted-device list.
type DeviceResponse struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsCurrent  bool      `json:"is_current"`
}

// HealthResponse represents the response structure for health check endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse contains the JSON Web Key Set.
type JWKSResponse jwtx.JWKS
