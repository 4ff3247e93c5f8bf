package store

import (
	"context"
	"errors"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. We can change having the sub-repos as methods later but we do it
// now so we can have more control and actively stop people from accidently
// doing transactions within transactions.
type Store interface {
	Users() Users
	TwoFactor() TwoFactor
	BackupCodes() BackupCodes
	Challenges() Challenges
	VerificationCodes() VerificationCodes
	Sessions() Sessions
	TrustedDevices() TrustedDevices
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., session promotion).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByLogin resolves a signin identifier, matching username or email.
	GetUserByLogin(ctx context.Context, login string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to sessions, devices and 2fa state (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type TwoFactor interface {
	// GetTwoFactor returns the 2fa configuration row for a user.
	GetTwoFactor(ctx context.Context, userID string) (domain.TwoFactor, error)

	// UpsertTwoFactor writes the pending enrollment row (method, secret, phone).
	UpsertTwoFactor(ctx context.Context, t domain.TwoFactor) error

	// EnableTwoFactor stamps enabled_at, completing enrollment.
	EnableTwoFactor(ctx context.Context, userID string, at time.Time) error

	// DeleteTwoFactor removes the configuration entirely (disable).
	DeleteTwoFactor(ctx context.Context, userID string) error
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code hash for a user.
	CreateBackupCode(ctx context.Context, userID string, codeHash string) error

	// ConsumeBackupCode deletes a matching code hash, reporting whether one
	// existed. Single-use is enforced by the delete itself.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	// DeleteAllBackupCodes removes all backup codes for a user.
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountBackupCodes returns the number of unused backup codes for a user.
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type Challenges interface {
	// CreateChallenge creates a pending second-factor challenge.
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge retrieves a challenge by id, expired or not. Expiry is
	// the service's decision so callers can distinguish expired from missing.
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and
	// returns the updated row.
	IncrementChallengeAttempts(ctx context.Context, id string) (domain.Challenge, error)

	// DeleteChallenge removes a challenge (completed, aborted or locked out).
	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges removes all expired challenges (housekeeping).
	DeleteExpiredChallenges(ctx context.Context) error
}

type VerificationCodes interface {
	// CreateVerificationCode stores a freshly issued code.
	CreateVerificationCode(ctx context.Context, c domain.VerificationCode) error

	// GetActiveVerificationCode returns the unconsumed code for a challenge.
	GetActiveVerificationCode(ctx context.Context, challengeID string) (domain.VerificationCode, error)

	// GetLatestVerificationCode returns the newest code for a challenge
	// regardless of consumption, for resend-cooldown checks.
	GetLatestVerificationCode(ctx context.Context, challengeID string) (domain.VerificationCode, error)

	// ConsumeVerificationCode marks the code consumed if and only if it is
	// still unconsumed (compare-and-set). Returns false when another caller
	// already consumed it.
	ConsumeVerificationCode(ctx context.Context, id string, at time.Time) (bool, error)

	// DeleteVerificationCodes removes all codes for a challenge. Used when a
	// replacement code is committed.
	DeleteVerificationCodes(ctx context.Context, challengeID string) error

	// DeleteExpiredVerificationCodes removes all expired codes (housekeeping).
	DeleteExpiredVerificationCodes(ctx context.Context) error
}

type Sessions interface {
	// CreateSession records a new login.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns a session by id.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// ListSessions returns all sessions for a user, most recently active first.
	ListSessions(ctx context.Context, userID string) ([]domain.Session, error)

	// TouchSession bumps last_active_at.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// DeleteSession removes a session owned by userID. Ownership is enforced
	// in the query so a foreign id reads as not found.
	DeleteSession(ctx context.Context, userID, id string) error

	// DeleteAllSessions removes every session for a user and returns the count.
	DeleteAllSessions(ctx context.Context, userID string) (int, error)
}

type TrustedDevices interface {
	// CreateTrustedDevice stores a new trusted device.
	CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error

	// GetTrustedDeviceByTokenHash returns the active device matching a token
	// fingerprint for a user.
	GetTrustedDeviceByTokenHash(ctx context.Context, userID, tokenHash string) (domain.TrustedDevice, error)

	// ListActiveTrustedDevices returns active devices, most recently used first.
	ListActiveTrustedDevices(ctx context.Context, userID string) ([]domain.TrustedDevice, error)

	// TouchTrustedDevice bumps last_used_at.
	TouchTrustedDevice(ctx context.Context, id string, at time.Time) error

	// DeactivateTrustedDevice flips active=0 for a device owned by userID.
	DeactivateTrustedDevice(ctx context.Context, userID, id string) error

	// DeactivateAllTrustedDevices flips active=0 for every device of a user
	// and returns the count affected.
	DeactivateAllTrustedDevices(ctx context.Context, userID string) (int, error)

	// DeleteExpiredTrustedDevices removes devices past expires_at (housekeeping).
	DeleteExpiredTrustedDevices(ctx context.Context) error
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListActiveSigningKeys returns all non-retired, non-expired signing keys
	// ordered by creation date (newest first).
	ListActiveSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns all signing keys (including retired and expired)
	// ordered by creation date (newest first). Used for verification during grace period.
	ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey marks a key as retired (sets retired_at timestamp).
	// Retired keys can still be used for verification but not for signing.
	RetireSigningKey(ctx context.Context, kid string) error

	// DeleteExpiredSigningKeys removes all keys that have passed their
	// expires_at timestamp to prevent unbounded table growth.
	DeleteExpiredSigningKeys(ctx context.Context) error
}
