package domain

import "time"

// Challenge represents a pending second-factor verification created after a
// successful password check. Its ID is carried as the sid of the
// challenge token, and the row tracks attempt count server-side.
type Challenge struct {
	ID        string // ULID (referenced by the challenge token)
	UserID    string
	Method    Method
	Attempts  int // failed verification attempts (capped to stop brute force)
	CreatedAt time.Time
	ExpiresAt time.Time
}

// VerificationCode is a single server-generated code bound to a challenge.
// At most one unconsumed row exists per challenge; issuing a replacement
// deletes the prior row in the same transaction.
type VerificationCode struct {
	ID          string
	ChallengeID string
	CodeHash    string // base64url SHA-256 fingerprint of the 6-digit code
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
}

// ChallengeRequiredResponse is returned from signin when a second factor
// must be completed before a session is granted.
type ChallengeRequiredResponse struct {
	ChallengeRequired bool      `json:"challenge_required"` // always true
	ChallengeToken    string    `json:"challenge_token"`
	Method            Method    `json:"method"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// SigninResponse is the success payload shared by password-only signin,
// trusted-device signin and challenge verification.
type SigninResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // seconds until expiry
	SessionID   string `json:"session_id"`
	DeviceToken string `json:"device_token,omitempty"` // set when the device was remembered
}
