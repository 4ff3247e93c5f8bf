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
	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/idx"
)

const (
	// DefaultChallengeTTL bounds the whole second-factor exchange; it
	// matches the challenge token's lifetime.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultCodeTTL is how long a dispatched verification code stays valid.
	DefaultCodeTTL = 10 * time.Minute

	// DefaultResendCooldown throttles send-code requests per challenge.
	DefaultResendCooldown = 60 * time.Second

	// DefaultMaxAttempts caps failed verifications before the challenge is
	// destroyed and the user must sign in again.
	DefaultMaxAttempts = 5
)

var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrMethodNotCodeBased = errors.New("method does not use dispatched codes")
	ErrResendTooSoon      = errors.New("a code was sent recently, wait before resending")
	ErrCodeMismatch       = errors.New("verification code does not match")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrCodeAlreadyUsed    = errors.New("verification code already used")
	ErrNoVerificationCode = errors.New("no verification code issued")
	ErrPhoneNumberMissing = errors.New("no phone number on record")
)

// ChallengeService drives the second half of a 2fa signin: a challenge row
// is created after the password check, codes are dispatched against it,
// and a successful verification promotes it into a session.
type ChallengeService struct {
	Store    store.Store
	Tokens   *TokenIssuer
	Sessions *SessionService
	Devices  *DeviceService
	Email    notify.CodeSender
	SMS      notify.CodeSender
	Logger   *slog.Logger

	ChallengeTTL   time.Duration // defaults to DefaultChallengeTTL
	CodeTTL        time.Duration // defaults to DefaultCodeTTL
	ResendCooldown time.Duration // defaults to DefaultResendCooldown
	MaxAttempts    int           // defaults to DefaultMaxAttempts
}

func (s *ChallengeService) challengeTTL() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

func (s *ChallengeService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

func (s *ChallengeService) resendCooldown() time.Duration {
	if s.ResendCooldown > 0 {
		return s.ResendCooldown
	}
	return DefaultResendCooldown
}

func (s *ChallengeService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Begin creates a challenge for the user and signs its token. For sms and
// email the first code is dispatched immediately; a delivery failure here
// is logged but does not fail the signin, since the user can hit
// send-code once they hold the challenge token.
func (s *ChallengeService) Begin(ctx context.Context, user domain.User, tf domain.TwoFactor) (domain.ChallengeRequiredResponse, error) {
	now := time.Now().UTC()
	ch := domain.Challenge{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Method:    tf.Method,
		CreatedAt: now,
		ExpiresAt: now.Add(s.challengeTTL()),
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, ch); err != nil {
		return domain.ChallengeRequiredResponse{}, fmt.Errorf("failed to create challenge: %w", err)
	}

	if tf.Method.CodeBased() {
		if _, err := s.issueCode(ctx, ch, user, tf); err != nil {
			s.logger().Warn("initial code dispatch failed",
				slog.String("challenge_id", ch.ID),
				slog.String("method", tf.Method.String()),
				slog.Any("error", err),
			)
		}
	}

	token, err := s.Tokens.IssueChallengeToken(user, ch.ID, now)
	if err != nil {
		return domain.ChallengeRequiredResponse{}, fmt.Errorf("failed to sign challenge token: %w", err)
	}

	return domain.ChallengeRequiredResponse{
		ChallengeRequired: true,
		ChallengeToken:    token,
		Method:            tf.Method,
		ExpiresAt:         ch.ExpiresAt,
	}, nil
}

// SendCode dispatches a fresh verification code for a pending challenge,
// enforcing the resend cooldown against the newest code regardless of its
// consumption state. The previously issued code is replaced only after
// delivery succeeds, so a provider outage never strands the user with no
// valid code.
func (s *ChallengeService) SendCode(ctx context.Context, challengeID string) (time.Time, error) {
	ch, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return time.Time{}, err
	}
	if !ch.Method.CodeBased() {
		return time.Time{}, ErrMethodNotCodeBased
	}

	latest, err := s.Store.VerificationCodes().GetLatestVerificationCode(ctx, ch.ID)
	switch {
	case err == nil:
		if since := time.Now().UTC().Sub(latest.CreatedAt); since < s.resendCooldown() {
			return time.Time{}, ErrResendTooSoon
		}
	case errors.Is(err, store.ErrNotFound):
		// First code for this challenge.
	default:
		return time.Time{}, fmt.Errorf("failed to check resend cooldown: %w", err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, ch.UserID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load user: %w", err)
	}
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, ch.UserID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load 2fa settings: %w", err)
	}

	return s.issueCode(ctx, ch, user, tf)
}

// issueCode generates, dispatches and stores one verification code. The
// store swap (delete prior codes, insert the new one) happens in a single
// transaction and only after dispatch succeeded.
func (s *ChallengeService) issueCode(ctx context.Context, ch domain.Challenge, user domain.User, tf domain.TwoFactor) (time.Time, error) {
	code, err := cryptox.GenerateNumericCode(cryptox.NumericCodeDigits)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.dispatch(ctx, user, tf, code); err != nil {
		return time.Time{}, err
	}

	now := time.Now().UTC()
	vc := domain.VerificationCode{
		ID:          idx.New().String(),
		ChallengeID: ch.ID,
		CodeHash:    cryptox.FingerprintToken(code),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.codeTTL()),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.VerificationCodes().DeleteVerificationCodes(ctx, ch.ID); err != nil {
			return fmt.Errorf("failed to clear prior codes: %w", err)
		}
		if err := tx.VerificationCodes().CreateVerificationCode(ctx, vc); err != nil {
			return fmt.Errorf("failed to store code: %w", err)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return vc.ExpiresAt, nil
}

func (s *ChallengeService) dispatch(ctx context.Context, user domain.User, tf domain.TwoFactor, code string) error {
	switch tf.Method {
	case domain.MethodEmail:
		return s.Email.SendCode(ctx, user.Email, code, s.codeTTL())
	case domain.MethodSMS:
		if tf.Phone == nil || *tf.Phone == "" {
			return ErrPhoneNumberMissing
		}
		return s.SMS.SendCode(ctx, *tf.Phone, code, s.codeTTL())
	default:
		return ErrMethodNotCodeBased
	}
}

// Verify checks the submitted code and, on success, atomically destroys
// the challenge and promotes it into a full session. When rememberDevice
// is set the device is registered in the same transaction and the opaque
// device token is returned alongside the access token.
func (s *ChallengeService) Verify(
	ctx context.Context,
	challengeID, code string,
	rememberDevice bool,
	dev fingerprint.Device,
) (domain.SigninResponse, error) {
	ch, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return domain.SigninResponse{}, err
	}
	if ch.Attempts >= s.maxAttempts() {
		_ = s.Store.Challenges().DeleteChallenge(ctx, ch.ID)
		return domain.SigninResponse{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByID(ctx, ch.UserID)
	if err != nil {
		return domain.SigninResponse{}, fmt.Errorf("failed to load user: %w", err)
	}
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, ch.UserID)
	if err != nil {
		return domain.SigninResponse{}, fmt.Errorf("failed to load 2fa settings: %w", err)
	}

	amr, verifyErr := s.checkFactor(ctx, ch, tf, code)
	if verifyErr != nil {
		return domain.SigninResponse{}, s.recordFailure(ctx, ch, verifyErr)
	}

	var resp domain.SigninResponse
	var deviceToken string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Cascades to any verification codes.
		if err := tx.Challenges().DeleteChallenge(ctx, ch.ID); err != nil {
			return fmt.Errorf("failed to close challenge: %w", err)
		}

		var trustedDeviceID *string
		if rememberDevice {
			d, token, err := s.Devices.Trust(ctx, tx, user.ID, dev)
			if err != nil {
				return err
			}
			trustedDeviceID = &d.ID
			deviceToken = token
		}

		var err error
		resp, err = s.Sessions.StartSession(ctx, tx, user, dev, trustedDeviceID, amr)
		return err
	})
	if err != nil {
		return domain.SigninResponse{}, err
	}

	resp.DeviceToken = deviceToken
	return resp, nil
}

// checkFactor verifies one submitted code against the challenge's method,
// falling back to a single-use backup code for any method. Returns the
// AMR values describing how the second factor was satisfied.
func (s *ChallengeService) checkFactor(ctx context.Context, ch domain.Challenge, tf domain.TwoFactor, code string) ([]string, error) {
	// Backup codes are visually distinct (grouped hex with hyphens), so a
	// hyphenated submission is treated as one up front.
	if strings.Contains(code, "-") || len(code) == cryptox.BackupCodeGroups*cryptox.BackupCodeGroupSize {
		if ok, err := s.consumeBackupCode(ctx, ch.UserID, code); err != nil {
			return nil, err
		} else if ok {
			return []string{"pwd", "mfa"}, nil
		}
	}

	switch ch.Method {
	case domain.MethodAuthenticator:
		if tf.Secret == nil || *tf.Secret == "" {
			return nil, ErrCodeMismatch
		}
		if !validateTOTP(code, *tf.Secret, time.Now().UTC()) {
			return nil, ErrCodeMismatch
		}
		return []string{"pwd", "otp", "mfa"}, nil

	case domain.MethodSMS, domain.MethodEmail:
		vc, err := s.Store.VerificationCodes().GetActiveVerificationCode(ctx, ch.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoVerificationCode
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load verification code: %w", err)
		}

		now := time.Now().UTC()
		if now.After(vc.ExpiresAt) {
			return nil, ErrCodeExpired
		}
		if vc.CodeHash != cryptox.FingerprintToken(code) {
			return nil, ErrCodeMismatch
		}

		consumed, err := s.Store.VerificationCodes().ConsumeVerificationCode(ctx, vc.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to consume verification code: %w", err)
		}
		if !consumed {
			return nil, ErrCodeAlreadyUsed
		}
		return []string{"pwd", "mfa"}, nil

	default:
		return nil, ErrCodeMismatch
	}
}

func (s *ChallengeService) consumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	hash := cryptox.FingerprintToken(cryptox.NormalizeBackupCode(code))
	ok, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, userID, hash)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return ok, nil
}

// recordFailure bumps the attempt counter and converts the verification
// error into a lockout once the cap is hit.
func (s *ChallengeService) recordFailure(ctx context.Context, ch domain.Challenge, verifyErr error) error {
	updated, err := s.Store.Challenges().IncrementChallengeAttempts(ctx, ch.ID)
	if err != nil {
		s.logger().Error("failed to record verification attempt",
			slog.String("challenge_id", ch.ID),
			slog.Any("error", err),
		)
		return verifyErr
	}
	if updated.Attempts >= s.maxAttempts() {
		_ = s.Store.Challenges().DeleteChallenge(ctx, ch.ID)
		return ErrTooManyAttempts
	}
	return verifyErr
}

// loadChallenge fetches a challenge and enforces expiry, deleting the row
// when it has lapsed so later calls read as not found.
func (s *ChallengeService) loadChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	ch, err := s.Store.Challenges().GetChallenge(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Challenge{}, ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to load challenge: %w", err)
	}
	if time.Now().UTC().After(ch.ExpiresAt) {
		_ = s.Store.Challenges().DeleteChallenge(ctx, ch.ID)
		return domain.Challenge{}, ErrChallengeExpired
	}
	return ch, nil
}

func (s *ChallengeService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
