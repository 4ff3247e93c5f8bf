package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spendlyzer/auth/internal/auth/domain"
	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/store"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const backupCodeCount = 10

var (
	ErrAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrNotEnabled     = errors.New("two-factor authentication not enabled")
	ErrNotEnrolled    = errors.New("no pending two-factor enrollment")
	ErrInvalidCode    = errors.New("invalid verification code")
	ErrPhoneRequired  = errors.New("phone number required for sms")
)

// TwoFactorService owns the enrollment lifecycle: enable (with setup
// verification), disable, and backup-code management. Enabling is a
// two-step dance so a user can never lock themselves out with an
// authenticator they never scanned or a phone number that can't receive
// texts.
type TwoFactorService struct {
	Store      store.Store
	Email      notify.CodeSender
	SMS        notify.CodeSender
	TOTPIssuer string // shown in authenticator apps, e.g. "Spendlyzer"
	Logger     *slog.Logger

	SetupCodeTTL time.Duration // defaults to DefaultCodeTTL
}

func (s *TwoFactorService) setupCodeTTL() time.Duration {
	if s.SetupCodeTTL > 0 {
		return s.SetupCodeTTL
	}
	return DefaultCodeTTL
}

// Settings returns the owner's current configuration. Absence of a row
// simply reads as disabled.
func (s *TwoFactorService) Settings(ctx context.Context, userID string) (domain.TwoFactorSettings, error) {
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TwoFactorSettings{}, nil
	}
	if err != nil {
		return domain.TwoFactorSettings{}, fmt.Errorf("failed to load 2fa settings: %w", err)
	}

	left, err := s.Store.BackupCodes().CountBackupCodes(ctx, userID)
	if err != nil {
		return domain.TwoFactorSettings{}, fmt.Errorf("failed to count backup codes: %w", err)
	}

	method := tf.Method
	return domain.TwoFactorSettings{
		Enabled:         tf.Enabled(),
		Method:          &method,
		Phone:           tf.Phone,
		BackupCodesLeft: left,
		PendingSetup:    !tf.Enabled(),
	}, nil
}

// Enable begins enrollment. For the authenticator method it returns the
// TOTP secret and otpauth URL to scan; for sms and email it dispatches a
// setup code to prove the destination works. Either way the factor stays
// disabled until VerifySetup succeeds.
func (s *TwoFactorService) Enable(ctx context.Context, user domain.User, method domain.Method, phone string) (domain.EnrollResponse, error) {
	existing, err := s.Store.TwoFactor().GetTwoFactor(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.EnrollResponse{}, fmt.Errorf("failed to load 2fa settings: %w", err)
	}
	if err == nil && existing.Enabled() {
		return domain.EnrollResponse{}, ErrAlreadyEnabled
	}

	now := time.Now().UTC()
	switch method {
	case domain.MethodAuthenticator:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.TOTPIssuer,
			AccountName: user.Email,
			Period:      30,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return domain.EnrollResponse{}, fmt.Errorf("failed to generate TOTP key: %w", err)
		}

		secret := key.Secret()
		err = s.Store.TwoFactor().UpsertTwoFactor(ctx, domain.TwoFactor{
			UserID:    user.ID,
			Method:    method,
			Secret:    &secret,
			UpdatedAt: now,
		})
		if err != nil {
			return domain.EnrollResponse{}, fmt.Errorf("failed to store enrollment: %w", err)
		}

		return domain.EnrollResponse{
			Method:     method,
			Secret:     secret,
			OTPAuthURL: key.URL(),
		}, nil

	case domain.MethodSMS, domain.MethodEmail:
		phone = strings.TrimSpace(phone)
		if method == domain.MethodSMS && phone == "" {
			return domain.EnrollResponse{}, ErrPhoneRequired
		}

		code, err := cryptox.GenerateNumericCode(cryptox.NumericCodeDigits)
		if err != nil {
			return domain.EnrollResponse{}, fmt.Errorf("failed to generate setup code: %w", err)
		}

		// Dispatch before persisting so a dead destination never becomes
		// the account's second factor.
		if method == domain.MethodSMS {
			err = s.SMS.SendCode(ctx, phone, code, s.setupCodeTTL())
		} else {
			err = s.Email.SendCode(ctx, user.Email, code, s.setupCodeTTL())
		}
		if err != nil {
			return domain.EnrollResponse{}, err
		}

		// The secret column holds the pending setup-code fingerprint until
		// enrollment completes; these methods have no long-term secret.
		codeHash := cryptox.FingerprintToken(code)
		tf := domain.TwoFactor{
			UserID:    user.ID,
			Method:    method,
			Secret:    &codeHash,
			UpdatedAt: now,
		}
		if method == domain.MethodSMS {
			tf.Phone = &phone
		}
		if err := s.Store.TwoFactor().UpsertTwoFactor(ctx, tf); err != nil {
			return domain.EnrollResponse{}, fmt.Errorf("failed to store enrollment: %w", err)
		}

		return domain.EnrollResponse{Method: method, SetupSent: true}, nil

	default:
		return domain.EnrollResponse{}, fmt.Errorf("unknown 2fa method %q", method)
	}
}

// VerifySetup completes enrollment: the submitted code proves the
// authenticator was scanned (TOTP) or the destination receives codes
// (sms/email). On success the factor is enabled and a fresh set of backup
// codes is returned, shown exactly once.
func (s *TwoFactorService) VerifySetup(ctx context.Context, userID, code string) ([]string, error) {
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load 2fa settings: %w", err)
	}
	if tf.Enabled() {
		return nil, ErrAlreadyEnabled
	}
	if tf.Secret == nil || *tf.Secret == "" {
		return nil, ErrNotEnrolled
	}

	now := time.Now().UTC()
	switch tf.Method {
	case domain.MethodAuthenticator:
		if !validateTOTP(code, *tf.Secret, now) {
			return nil, ErrInvalidCode
		}
	case domain.MethodSMS, domain.MethodEmail:
		if now.After(tf.UpdatedAt.Add(s.setupCodeTTL())) {
			return nil, ErrInvalidCode
		}
		if *tf.Secret != cryptox.FingerprintToken(code) {
			return nil, ErrInvalidCode
		}
	default:
		return nil, ErrInvalidCode
	}

	codes, hashes, err := mintBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Code-based methods carry no long-term secret; clear the consumed
		// setup-code fingerprint.
		if tf.Method.CodeBased() {
			tf.Secret = nil
			tf.UpdatedAt = now
			if err := tx.TwoFactor().UpsertTwoFactor(ctx, tf); err != nil {
				return fmt.Errorf("failed to clear setup code: %w", err)
			}
		}
		if err := tx.TwoFactor().EnableTwoFactor(ctx, userID, now); err != nil {
			return fmt.Errorf("failed to enable 2fa: %w", err)
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}
		for _, hash := range hashes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, hash); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Logger != nil {
		s.Logger.Info("two-factor authentication enabled",
			slog.String("user_id", userID),
			slog.String("method", tf.Method.String()),
		)
	}
	return codes, nil
}

// Disable turns the factor off after re-verifying it: a current TOTP code
// for the authenticator method, or a backup code for any method.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	tf, err := s.requireEnabled(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.verifyFactor(ctx, tf, code); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		if err := tx.TwoFactor().DeleteTwoFactor(ctx, userID); err != nil {
			return fmt.Errorf("failed to disable 2fa: %w", err)
		}
		return nil
	})
}

// RegenerateBackupCodes replaces the whole set after re-verifying the
// factor. Unused old codes are invalidated.
func (s *TwoFactorService) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	tf, err := s.requireEnabled(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyFactor(ctx, tf, code); err != nil {
		return nil, err
	}

	codes, hashes, err := mintBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete old backup codes: %w", err)
		}
		for _, hash := range hashes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, hash); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *TwoFactorService) requireEnabled(ctx context.Context, userID string) (domain.TwoFactor, error) {
	tf, err := s.Store.TwoFactor().GetTwoFactor(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TwoFactor{}, ErrNotEnabled
	}
	if err != nil {
		return domain.TwoFactor{}, fmt.Errorf("failed to load 2fa settings: %w", err)
	}
	if !tf.Enabled() {
		return domain.TwoFactor{}, ErrNotEnabled
	}
	return tf, nil
}

// verifyFactor re-proves possession of the second factor for sensitive
// settings changes. A backup code is consumed if used.
func (s *TwoFactorService) verifyFactor(ctx context.Context, tf domain.TwoFactor, code string) error {
	if tf.Method == domain.MethodAuthenticator && tf.Secret != nil {
		if validateTOTP(code, *tf.Secret, time.Now().UTC()) {
			return nil
		}
	}

	hash := cryptox.FingerprintToken(cryptox.NormalizeBackupCode(code))
	ok, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, tf.UserID, hash)
	if err != nil {
		return fmt.Errorf("failed to consume backup code: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

func validateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// mintBackupCodes generates a full set, returning both the plaintext
// codes (for the response) and their fingerprints (for storage).
func mintBackupCodes() ([]string, []string, error) {
	codes := make([]string, backupCodeCount)
	hashes := make([]string, backupCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = code
		hashes[i] = cryptox.FingerprintToken(code)
	}
	return codes, hashes, nil
}
