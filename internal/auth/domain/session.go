package domain

import "time"

// Session is one authenticated login. The row ID doubles as the sid claim
// of the access token, so deleting the row revokes the token immediately.
type Session struct {
	ID              string
	UserID          string
	TrustedDeviceID *string // set when the login came via a trusted device
	DeviceInfo      string  // human readable, e.g. "Desktop - macOS - Firefox"
	IPAddress       string
	UserAgent       string
	CreatedAt       time.Time
	LastActiveAt    time.Time
}

// SessionView decorates a Session for the list endpoint.
type SessionView struct {
	ID           string    `json:"id"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	IsCurrent    bool      `json:"is_current"`
}

// RevokeSessionResult reports whether the caller revoked their own session
// and must discard their access token.
type RevokeSessionResult struct {
	LoggedOutSelf bool `json:"logout_required"`
}
