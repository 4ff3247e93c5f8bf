package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/jwtx"
)

// InitAuthKeys creates a new KeyManager with the configured storage mode.
//
// Storage modes:
//   - "ephemeral": Keys are generated on startup and stored only in memory.
//     All existing tokens become invalid when the service restarts.
//   - "persistent": Keys are stored in the database with encryption.
//     Tokens survive service restarts.
//
// By default, generates 3 Ed25519 signing keys with random identifiers for
// improved availability and load distribution. Use AUTH_NUM_KEYS to customize.
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	// Configure master key path if provided (for persistent mode)
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	}

	var keyManager *jwtx.KeyManager
	var err error

	switch cfg.KeyStorageMode {
	case "persistent":
		// Create adapter to bridge store and jwtx interfaces
		keyStore := store.NewKeyStoreAdapter(db)

		logger.Info("initializing persistent key manager",
			"num_keys", cfg.NumKeys,
			"grace_period", cfg.KeyGracePeriod,
		)

		keyManager, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:       keyStore,
			Issuer:      cfg.Issuer,
			Audience:    cfg.Audience,
			NumKeys:     cfg.NumKeys,
			GracePeriod: cfg.KeyGracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}

		logger.Info("persistent signing keys loaded/generated",
			"num_keys", keyManager.NumSigners(),
			"issuer", cfg.Issuer,
			"grace_period", cfg.KeyGracePeriod,
		)

		logger.Info("persistent key mode enabled - tokens will survive restarts")

	case "ephemeral":
		fallthrough
	default:
		logger.Info("initializing ephemeral key manager", "num_keys", cfg.NumKeys)

		keyManager, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
			NumKeys:  cfg.NumKeys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Info("generated ephemeral signing keys",
			"num_keys", keyManager.NumSigners(),
			"issuer", cfg.Issuer,
		)

		logger.Warn("all existing tokens are now invalid due to key rotation on startup")
	}

	return keyManager, nil
}
