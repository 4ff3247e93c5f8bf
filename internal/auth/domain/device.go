package domain

import "time"

// TrustedDevice lets a browser skip the second factor at signin. The
// opaque bearer token is never stored, only its fingerprint; revocation
// flips Active rather than deleting so the audit trail survives.
type TrustedDevice struct {
	ID         string
	UserID     string
	DeviceHash string // SHA-256 over canonical user-agent attributes
	TokenHash  string // base64url SHA-256 fingerprint of the bearer token
	DeviceName string // e.g. "Desktop - macOS - Firefox"
	UserAgent  string
	IPAddress  string
	Location   string
	Active     bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
}

// Expired reports whether the trust window has lapsed.
func (d *TrustedDevice) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// TrustedDeviceView is the list representation. Token material is never
// exposed after creation.
type TrustedDeviceView struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	Location   string    `json:"location,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsCurrent  bool      `json:"is_current"`
}
