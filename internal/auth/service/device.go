package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/idx"
)

const (
	// DefaultDeviceTTL is how long a remembered device may skip the second
	// factor before the user has to verify again.
	DefaultDeviceTTL = 7 * 24 * time.Hour

	// DefaultMaxDevices caps active trusted devices per user; trusting one
	// more evicts the least recently used.
	DefaultMaxDevices = 5
)

var (
	ErrDeviceNotTrusted = errors.New("device not trusted")
	ErrDeviceNotFound   = errors.New("trusted device not found")
)

// DeviceService manages trusted devices. The bearer token handed to the
// browser is opaque and never stored; only its SHA-256 fingerprint is,
// alongside the device's own fingerprint hash so a stolen token presented
// from a different browser is useless.
type DeviceService struct {
	Store  store.Store
	Logger *slog.Logger

	DeviceTTL  time.Duration // defaults to DefaultDeviceTTL
	MaxDevices int           // defaults to DefaultMaxDevices
}

func (s *DeviceService) ttl() time.Duration {
	if s.DeviceTTL > 0 {
		return s.DeviceTTL
	}
	return DefaultDeviceTTL
}

func (s *DeviceService) maxDevices() int {
	if s.MaxDevices > 0 {
		return s.MaxDevices
	}
	return DefaultMaxDevices
}

// Trust registers the device and returns it with the plaintext bearer
// token, shown exactly once. Pass a Tx as st to register atomically with
// session promotion. Enforces the per-user device cap by deactivating the
// least recently used devices first.
func (s *DeviceService) Trust(ctx context.Context, st store.Store, userID string, dev fingerprint.Device) (domain.TrustedDevice, string, error) {
	if st == nil {
		st = s.Store
	}

	active, err := st.TrustedDevices().ListActiveTrustedDevices(ctx, userID)
	if err != nil {
		return domain.TrustedDevice{}, "", fmt.Errorf("failed to list trusted devices: %w", err)
	}
	// List is most recently used first; evict from the tail.
	for len(active) >= s.maxDevices() {
		oldest := active[len(active)-1]
		if err := st.TrustedDevices().DeactivateTrustedDevice(ctx, userID, oldest.ID); err != nil {
			return domain.TrustedDevice{}, "", fmt.Errorf("failed to evict trusted device: %w", err)
		}
		active = active[:len(active)-1]
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TrustedDevice{}, "", fmt.Errorf("failed to generate device token: %w", err)
	}

	now := time.Now().UTC()
	d := domain.TrustedDevice{
		ID:         idx.New().String(),
		UserID:     userID,
		DeviceHash: dev.Hash,
		TokenHash:  cryptox.FingerprintToken(token),
		DeviceName: dev.Name,
		UserAgent:  dev.UserAgent,
		IPAddress:  dev.IPAddress,
		Location:   locationForIP(dev.IPAddress),
		Active:     true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl()),
		LastUsedAt: now,
	}
	if err := st.TrustedDevices().CreateTrustedDevice(ctx, d); err != nil {
		return domain.TrustedDevice{}, "", fmt.Errorf("failed to store trusted device: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("trusted device registered",
			slog.String("user_id", userID),
			slog.String("device_id", d.ID),
			slog.String("device_name", d.DeviceName),
		)
	}
	return d, token, nil
}

// Redeem resolves a device token presented at signin. Expiry is lazy:
// an expired or fingerprint-mismatched device is deactivated here, at
// lookup time, and the caller falls back to the second factor.
func (s *DeviceService) Redeem(ctx context.Context, userID, token string, dev fingerprint.Device) (domain.TrustedDevice, error) {
	d, err := s.Store.TrustedDevices().GetTrustedDeviceByTokenHash(ctx, userID, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.TrustedDevice{}, ErrDeviceNotTrusted
	}
	if err != nil {
		return domain.TrustedDevice{}, fmt.Errorf("failed to look up trusted device: %w", err)
	}

	now := time.Now().UTC()
	if d.Expired(now) {
		if err := s.Store.TrustedDevices().DeactivateTrustedDevice(ctx, userID, d.ID); err != nil {
			return domain.TrustedDevice{}, fmt.Errorf("failed to deactivate expired device: %w", err)
		}
		return domain.TrustedDevice{}, ErrDeviceNotTrusted
	}

	// Token replay from a different browser: kill the device outright.
	if d.DeviceHash != dev.Hash {
		if err := s.Store.TrustedDevices().DeactivateTrustedDevice(ctx, userID, d.ID); err != nil {
			return domain.TrustedDevice{}, fmt.Errorf("failed to deactivate mismatched device: %w", err)
		}
		if s.Logger != nil {
			s.Logger.Warn("device token presented from unrecognised device",
				slog.String("user_id", userID),
				slog.String("device_id", d.ID),
			)
		}
		return domain.TrustedDevice{}, ErrDeviceNotTrusted
	}

	if err := s.Store.TrustedDevices().TouchTrustedDevice(ctx, d.ID, now); err != nil {
		return domain.TrustedDevice{}, fmt.Errorf("failed to touch trusted device: %w", err)
	}
	d.LastUsedAt = now
	return d, nil
}

// List returns the user's active trusted devices, flagging the one the
// current session came through (if any).
func (s *DeviceService) List(ctx context.Context, userID string, currentDeviceID *string) ([]domain.TrustedDeviceView, error) {
	devices, err := s.Store.TrustedDevices().ListActiveTrustedDevices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted devices: %w", err)
	}

	views := make([]domain.TrustedDeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, domain.TrustedDeviceView{
			ID:         d.ID,
			DeviceName: d.DeviceName,
			IPAddress:  d.IPAddress,
			Location:   d.Location,
			CreatedAt:  d.CreatedAt,
			ExpiresAt:  d.ExpiresAt,
			LastUsedAt: d.LastUsedAt,
			IsCurrent:  currentDeviceID != nil && d.ID == *currentDeviceID,
		})
	}
	return views, nil
}

// Revoke deactivates one trusted device. The caller's live session is not
// touched; the device simply can't skip the second factor next signin.
func (s *DeviceService) Revoke(ctx context.Context, userID, deviceID string) error {
	err := s.Store.TrustedDevices().DeactivateTrustedDevice(ctx, userID, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to revoke trusted device: %w", err)
	}
	return nil
}

// RevokeAll deactivates every trusted device and returns how many.
func (s *DeviceService) RevokeAll(ctx context.Context, userID string) (int, error) {
	count, err := s.Store.TrustedDevices().DeactivateAllTrustedDevices(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke trusted devices: %w", err)
	}
	return count, nil
}

// locationForIP is a best-effort label. Private and loopback addresses are
// named as such; public addresses are left blank rather than calling out
// to a geo service on the signin path.
func locationForIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return "Private Network"
	}
	return ""
}
