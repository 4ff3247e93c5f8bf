package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/fingerprint"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/idx"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials covers unknown login and wrong password alike
	// so a caller can't probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserExists      = errors.New("username or email already registered")
	ErrPasswordTooWeak = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// SigninRequest carries everything the password endpoint receives,
// including the server-derived device identity.
type SigninRequest struct {
	Login       string
	Password    string
	DeviceToken string // optional trusted-device token
	Device      fingerprint.Device
}

// SigninService handles primary credential verification: signup and the
// password step of signin. When the account has a second factor enabled
// and no valid trusted device is presented, signin hands over to the
// ChallengeService instead of minting a session.
type SigninService struct {
	Store      store.Store
	Challenges *ChallengeService
	Sessions   *SessionService
	Devices    *DeviceService
	Logger     *slog.Logger
}

// Signup registers a new account.
func (s *SigninService) Signup(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return domain.User{}, errors.New("username and email are required")
	}
	if len(password) < minPasswordLength {
		return domain.User{}, ErrPasswordTooWeak
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Info("user registered", slog.String("user_id", user.ID))
	}
	return user, nil
}

// Signin verifies the password and decides the outcome:
//   - no second factor enabled: session + access token
//   - valid trusted device presented: session + access token, factor skipped
//   - otherwise: a challenge the caller must complete via the 2fa endpoints
//
// Exactly one of the two responses is populated on success.
func (s *SigninService) Signin(ctx context.Context, req SigninRequest) (domain.SigninResponse, *domain.ChallengeRequiredResponse, error) {
	user, err := s.Store.Users().GetUserByLogin(ctx, strings.TrimSpace(req.Login))
	if errors.Is(err, store.ErrNotFound) {
		// Burn a hash comparison anyway so unknown logins take as long as
		// wrong passwords.
		_ = cryptox.VerifyPassword(req.Password, dummyPasswordHash)
		return domain.SigninResponse{}, nil, ErrInvalidCredentials
	}
	if err != nil {
		return domain.SigninResponse{}, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := cryptox.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		return domain.SigninResponse{}, nil, ErrInvalidCredentials
	}

	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.SigninResponse{}, nil, fmt.Errorf("failed to load 2fa settings: %w", err)
	}
	if err != nil || !tf.Enabled() {
		resp, err := s.Sessions.StartSession(ctx, nil, user, req.Device, nil, []string{"pwd"})
		return resp, nil, err
	}

	if req.DeviceToken != "" {
		d, err := s.Devices.Redeem(ctx, user.ID, req.DeviceToken, req.Device)
		if err == nil {
			resp, err := s.Sessions.StartSession(ctx, nil, user, req.Device, &d.ID, []string{"pwd", "device"})
			return resp, nil, err
		}
		if !errors.Is(err, ErrDeviceNotTrusted) {
			return domain.SigninResponse{}, nil, err
		}
		// Untrusted token falls through to the second factor.
	}

	challenge, err := s.Challenges.Begin(ctx, user, tf)
	if err != nil {
		return domain.SigninResponse{}, nil, err
	}
	return domain.SigninResponse{}, &challenge, nil
}

// dummyPasswordHash is a well-formed argon2id hash of a random throwaway
// password, used to equalise timing when the login doesn't exist.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
