package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/spendlyzer/auth/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records
// to prevent unbounded growth of challenges, verification codes,
// trusted devices, and signing keys.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup()

	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs the actual deletion of expired records.
// Each deletion is independent - failures in one won't stop the others.
func (s *HousekeepingService) Cleanup() {
	ctx := context.Background()
	s.Logger.Info("starting housekeeping cleanup")

	var successful int

	// Abandoned 2fa challenges. Cascades to their verification codes.
	if err := s.Store.Challenges().DeleteExpiredChallenges(ctx); err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
	} else {
		s.Logger.Debug("deleted expired challenges")
		successful++
	}

	// Codes whose challenge is still live but which have lapsed themselves.
	if err := s.Store.VerificationCodes().DeleteExpiredVerificationCodes(ctx); err != nil {
		s.Logger.Error("failed to delete expired verification codes", "error", err)
	} else {
		s.Logger.Debug("deleted expired verification codes")
		successful++
	}

	// Trusted devices past their 7-day window. Lazy expiry already
	// deactivates them at lookup; this removes the rows entirely.
	if err := s.Store.TrustedDevices().DeleteExpiredTrustedDevices(ctx); err != nil {
		s.Logger.Error("failed to delete expired trusted devices", "error", err)
	} else {
		s.Logger.Debug("deleted expired trusted devices")
		successful++
	}

	// Clean expired signing keys (for persistent key mode)
	if err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx); err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	} else {
		s.Logger.Debug("deleted expired signing keys")
		successful++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", successful)
}
