package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/idx"
)

// SigningKeyRecord represents a signing key stored in the database.
// This mirrors the domain type without importing it, preventing circular
// dependencies.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore defines the minimal interface needed for persistent key management.
// This allows the jwtx package to work with keys without depending on the store package.
type KeyStore interface {
	// ListAllSigningKeys returns all signing keys (including retired and expired)
	// for verification during grace period.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns only active (non-retired, non-expired) keys
	// for signing operations.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a KeyManager with persistent key storage.
type PersistentKeyManagerOptions struct {
	// Store provides access to the signing keys database.
	Store KeyStore

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// Audience is the list of audience values (aud) that will be validated.
	// Empty slice means no audience validation.
	Audience []string

	// NumKeys specifies the target number of active signing keys.
	// If fewer active keys exist in the database, new ones will be generated.
	// Defaults to 3 if not specified.
	NumKeys int

	// GracePeriod is how long retired keys remain valid for verification.
	// Keys are marked expired after (retired_at + GracePeriod).
	// Defaults to 30 days if not specified.
	GracePeriod time.Duration
}

// NewPersistentKeyManager creates a KeyManager that loads keys from a database.
// Unlike ephemeral keys, these keys survive service restarts and support
// gradual rotation with a grace period for token verification.
//
// On initialization, it will:
// 1. Load all keys from the database (for verification)
// 2. Load active keys only (for signing)
// 3. Generate new keys if needed to reach NumKeys target
// 4. Add all keys to JWKS for public key distribution
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	opts.NumKeys = clampNumKeys(opts.NumKeys)
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 30 * 24 * time.Hour
	}

	// Load all keys from database (including retired) for verification
	allKeys, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}

	// Load active keys for signing
	activeKeys, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load active keys: %w", err)
	}

	// Create KeySet for JWKS publishing - add ALL keys for verification
	keyset := NewKeySet()

	for _, keyRecord := range allKeys {
		signer, err := signerFromRecord(keyRecord)
		if err != nil {
			return nil, err
		}

		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", keyRecord.Kid, err)
		}
	}

	// Create list of active signers only (for signing operations)
	activeSigners := make([]Signer, 0, len(activeKeys))
	for _, keyRecord := range activeKeys {
		signer, err := signerFromRecord(keyRecord)
		if err != nil {
			return nil, err
		}
		activeSigners = append(activeSigners, signer)
	}

	// Generate new keys if we don't have enough active keys
	now := time.Now()
	for len(activeSigners) < opts.NumKeys {
		kid, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		pemData, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate new key: %w", err)
		}

		signer, err := NewSignerEdDSA(kid, pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to create signer for new key: %w", err)
		}

		// Encrypt private key for storage
		encryptedKey, err := cryptox.EncryptPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
		}

		keyRecord := SigningKeyRecord{
			ID:                  idx.New().String(),
			Kid:                 kid,
			Algorithm:           AlgorithmEdDSA,
			PrivateKeyEncrypted: encryptedKey,
			CreatedAt:           now,
			RetiredAt:           nil,                       // Active key
			ExpiresAt:           now.Add(opts.GracePeriod), // Will be extended when retired
		}

		if err := opts.Store.CreateSigningKey(ctx, keyRecord); err != nil {
			return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
		}

		activeSigners = append(activeSigners, signer)
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add new key to keyset: %w", err)
		}
	}

	return &KeyManager{
		Verifier: NewCommonEdDSA(keyset, opts.Issuer, opts.Audience),
		KeySet:   keyset,
		signers:  activeSigners,
	}, nil
}

// signerFromRecord decrypts a stored key and rebuilds its signer.
func signerFromRecord(keyRecord SigningKeyRecord) (Signer, error) {
	if keyRecord.Algorithm != AlgorithmEdDSA {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q for key %s", keyRecord.Algorithm, keyRecord.Kid)
	}

	pemData, err := cryptox.DecryptPrivateKey(keyRecord.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", keyRecord.Kid, err)
	}

	signer, err := NewSignerEdDSA(keyRecord.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", keyRecord.Kid, err)
	}
	return signer, nil
}
