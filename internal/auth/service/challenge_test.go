package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spendlyzer/auth/internal/auth/notify"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestVerifyPromotesChallengeToSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	chID := e.beginChallenge(t, user)
	resp, err := e.challenges.Verify(ctx, chID, e.email.lastCode(t), false, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Empty(t, resp.DeviceToken, "device was not remembered")

	claims, err := e.tokens.Keys.Verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims.AMR, "mfa")
	require.True(t, claims.HasScope(service.ScopeAccount))

	// The challenge is gone; replaying the flow fails.
	_, err = e.challenges.Verify(ctx, chID, e.email.lastCode(t), false, testDevice())
	require.ErrorIs(t, err, service.ErrChallengeNotFound)
}

func TestVerifyWrongCodeLocksOutAfterCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)
	chID := e.beginChallenge(t, user)

	for i := 0; i < service.DefaultMaxAttempts-1; i++ {
		_, err := e.challenges.Verify(ctx, chID, "000000", false, testDevice())
		require.ErrorIs(t, err, service.ErrCodeMismatch)
	}

	// The capping attempt destroys the challenge.
	_, err := e.challenges.Verify(ctx, chID, "000000", false, testDevice())
	require.ErrorIs(t, err, service.ErrTooManyAttempts)

	// Even the correct code is useless now.
	_, err = e.challenges.Verify(ctx, chID, e.email.lastCode(t), false, testDevice())
	require.ErrorIs(t, err, service.ErrChallengeNotFound)
}

func TestSendCodeCooldown(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)
	chID := e.beginChallenge(t, user)

	// The initial code from signin is still within the cooldown window.
	_, err := e.challenges.SendCode(ctx, chID)
	require.ErrorIs(t, err, service.ErrResendTooSoon)

	// Once the window passes, a resend replaces the code.
	e.challenges.ResendCooldown = time.Millisecond
	time.Sleep(5 * time.Millisecond)

	sentBefore := e.email.count()
	_, err = e.challenges.SendCode(ctx, chID)
	require.NoError(t, err)
	require.Equal(t, sentBefore+1, e.email.count())
}

func TestSendCodeReplacesPriorCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)
	chID := e.beginChallenge(t, user)
	oldCode := e.email.lastCode(t)

	e.challenges.ResendCooldown = time.Millisecond
	time.Sleep(5 * time.Millisecond)
	_, err := e.challenges.SendCode(ctx, chID)
	require.NoError(t, err)
	newCode := e.email.lastCode(t)
	require.NotEqual(t, oldCode, newCode)

	// The replaced code no longer verifies.
	_, err = e.challenges.Verify(ctx, chID, oldCode, false, testDevice())
	require.ErrorIs(t, err, service.ErrCodeMismatch)

	resp, err := e.challenges.Verify(ctx, chID, newCode, false, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestDeliveryFailurePreservesPriorCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)
	chID := e.beginChallenge(t, user)
	firstCode := e.email.lastCode(t)

	e.challenges.ResendCooldown = time.Millisecond
	time.Sleep(5 * time.Millisecond)

	e.email.setFail(true)
	_, err := e.challenges.SendCode(ctx, chID)
	require.ErrorIs(t, err, notify.ErrDeliveryFailed)
	e.email.setFail(false)

	// The failed resend must not invalidate the code the user already has.
	resp, err := e.challenges.Verify(ctx, chID, firstCode, false, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestVerifyCodeSingleUseUnderRace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)
	chID := e.beginChallenge(t, user)
	code := e.email.lastCode(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.challenges.Verify(ctx, chID, code, false, testDevice())
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent verification may win")
}

func TestVerifyExpiredChallenge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	e.challenges.ChallengeTTL = time.Millisecond
	chID := e.beginChallenge(t, user)
	time.Sleep(5 * time.Millisecond)

	_, err := e.challenges.Verify(ctx, chID, e.email.lastCode(t), false, testDevice())
	require.ErrorIs(t, err, service.ErrChallengeExpired)
}

func TestVerifyExpiredCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	e.challenges.CodeTTL = time.Millisecond
	chID := e.beginChallenge(t, user)
	time.Sleep(5 * time.Millisecond)

	_, err := e.challenges.Verify(ctx, chID, e.email.lastCode(t), false, testDevice())
	require.ErrorIs(t, err, service.ErrCodeExpired)
}

func TestVerifyWithBackupCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	backupCodes := e.enableEmail2FA(t, user)

	chID := e.beginChallenge(t, user)
	resp, err := e.challenges.Verify(ctx, chID, backupCodes[0], false, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	// Single use: the same backup code fails on a fresh challenge.
	chID = e.beginChallenge(t, user)
	_, err = e.challenges.Verify(ctx, chID, backupCodes[0], false, testDevice())
	require.Error(t, err)

	// A different one still works.
	resp, err = e.challenges.Verify(ctx, chID, backupCodes[1], false, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
}

func TestVerifyAuthenticator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")

	enroll, err := e.twofactor.Enable(ctx, user, "authenticator", "")
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)

	setupCode, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	_, err = e.twofactor.VerifySetup(ctx, user.ID, setupCode)
	require.NoError(t, err)

	chID := e.beginChallenge(t, user)

	// Dispatched codes make no sense for authenticator challenges.
	_, err = e.challenges.SendCode(ctx, chID)
	require.ErrorIs(t, err, service.ErrMethodNotCodeBased)

	code, err := totp.GenerateCode(enroll.Secret, time.Now())
	require.NoError(t, err)
	resp, err := e.challenges.Verify(ctx, chID, code, false, testDevice())
	require.NoError(t, err)

	claims, err := e.tokens.Keys.Verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims.AMR, "otp")
}
