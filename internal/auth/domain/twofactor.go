package domain

import "time"

// TwoFactor is the per-user second-factor configuration. A row exists from
// the moment enrollment starts; EnabledAt is set only once setup has been
// proven (TOTP code or delivered setup code verified).
type TwoFactor struct {
	UserID    string
	Method    Method
	Secret    *string    // TOTP secret (nullable, base32 encoded)
	Phone     *string    // E.164, required for the sms method
	EnabledAt *time.Time // nil while enrollment is pending
	UpdatedAt time.Time
}

// Enabled reports whether the second factor is fully enrolled.
func (t *TwoFactor) Enabled() bool { return t.EnabledAt != nil }

// TwoFactorSettings is the settings view returned to the account owner.
type TwoFactorSettings struct {
	Enabled         bool    `json:"enabled"`
	Method          *Method `json:"method,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	BackupCodesLeft int     `json:"backup_codes_left"`
	PendingSetup    bool    `json:"pending_setup"`
}

// EnrollResponse is returned when enrollment begins. Secret and OTPAuthURL
// are set for the authenticator method only; BackupCodes are minted once
// enrollment completes.
type EnrollResponse struct {
	Method      Method   `json:"method"`
	Secret      string   `json:"secret,omitempty"`       // base32 TOTP secret
	OTPAuthURL  string   `json:"otpauth_url,omitempty"`  // for QR code generation
	BackupCodes []string `json:"backup_codes,omitempty"` // shown exactly once
	SetupSent   bool     `json:"setup_sent,omitempty"`   // sms/email: a setup code was dispatched
}
