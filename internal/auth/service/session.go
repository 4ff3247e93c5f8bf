package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/idx"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
)

// SessionService owns the session registry: every login creates a row and
// deleting the row revokes the access token bound to it.
type SessionService struct {
	Store  store.Store
	Tokens *TokenIssuer
	Logger *slog.Logger
}

// StartSession records a login and mints its access token. Pass a Tx as st
// when the session must be created atomically with other writes (challenge
// promotion); pass nil to use the service's own store.
func (s *SessionService) StartSession(
	ctx context.Context,
	st store.Store,
	user domain.User,
	dev fingerprint.Device,
	trustedDeviceID *string,
	amr []string,
) (domain.SigninResponse, error) {
	if st == nil {
		st = s.Store
	}
	now := time.Now().UTC()

	sess := domain.Session{
		ID:              idx.New().String(),
		UserID:          user.ID,
		TrustedDeviceID: trustedDeviceID,
		DeviceInfo:      dev.Name,
		IPAddress:       dev.IPAddress,
		UserAgent:       dev.UserAgent,
		CreatedAt:       now,
		LastActiveAt:    now,
	}
	if err := st.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.SigninResponse{}, fmt.Errorf("failed to create session: %w", err)
	}

	token, expiresIn, err := s.Tokens.IssueAccessToken(user, sess.ID, amr, now)
	if err != nil {
		return domain.SigninResponse{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return domain.SigninResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		SessionID:   sess.ID,
	}, nil
}

// List returns the user's sessions, newest activity first, flagging the
// one behind the caller's own token.
func (s *SessionService) List(ctx context.Context, userID, currentSID string) ([]domain.SessionView, error) {
	sessions, err := s.Store.Sessions().ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]domain.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, domain.SessionView{
			ID:           sess.ID,
			DeviceInfo:   sess.DeviceInfo,
			IPAddress:    sess.IPAddress,
			CreatedAt:    sess.CreatedAt,
			LastActiveAt: sess.LastActiveAt,
			IsCurrent:    sess.ID == currentSID,
		})
	}
	return views, nil
}

// Revoke deletes one session. Ownership is enforced in the store query so
// revoking another user's session reads as ErrSessionNotFound. When the
// caller revokes the session behind their own token the result says so,
// and the client must discard that token.
func (s *SessionService) Revoke(ctx context.Context, userID, sessionID, currentSID string) (domain.RevokeSessionResult, error) {
	err := s.Store.Sessions().DeleteSession(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.RevokeSessionResult{}, ErrSessionNotFound
	}
	if err != nil {
		return domain.RevokeSessionResult{}, fmt.Errorf("failed to revoke session: %w", err)
	}

	return domain.RevokeSessionResult{LoggedOutSelf: sessionID == currentSID}, nil
}

// RevokeAll deletes every session the user has, the caller's included.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int, error) {
	count, err := s.Store.Sessions().DeleteAllSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("revoked all sessions",
			slog.String("user_id", userID),
			slog.Int("count", count),
		)
	}
	return count, nil
}

// Get loads one session. A revoked session reads as ErrSessionRevoked.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionRevoked
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// Heartbeat confirms the session row still exists and bumps its activity
// timestamp. The authn middleware calls this on every request, which is
// what makes revocation immediate rather than waiting for token expiry.
func (s *SessionService) Heartbeat(ctx context.Context, sessionID string) error {
	_, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionRevoked
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	if err := s.Store.Sessions().TouchSession(ctx, sessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}
