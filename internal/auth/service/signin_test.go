package service_test

import (
	"context"
	"testing"

	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/stretchr/testify/require"
)

func TestSignupAndSignin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")

	resp, challenge, err := e.signin.Signin(ctx, service.SigninRequest{
		Login:    "alice",
		Password: testPassword,
		Device:   testDevice(),
	})
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.NotEmpty(t, resp.SessionID)

	claims, err := e.tokens.Keys.Verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, resp.SessionID, claims.SID)
	require.True(t, claims.HasScope(service.ScopeAccount))
	require.Equal(t, []string{"pwd"}, claims.AMR)
}

func TestSigninByEmail(t *testing.T) {
	e := newEnv(t)

	e.signupUser(t, "alice")

	resp, challenge, err := e.signin.Signin(context.Background(), service.SigninRequest{
		Login:    "alice@example.com",
		Password: testPassword,
		Device:   testDevice(),
	})
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotEmpty(t, resp.AccessToken)
}

func TestSigninWrongPassword(t *testing.T) {
	e := newEnv(t)

	e.signupUser(t, "alice")

	_, _, err := e.signin.Signin(context.Background(), service.SigninRequest{
		Login:    "alice",
		Password: "not-the-password",
		Device:   testDevice(),
	})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestSigninUnknownLogin(t *testing.T) {
	e := newEnv(t)

	_, _, err := e.signin.Signin(context.Background(), service.SigninRequest{
		Login:    "nobody",
		Password: testPassword,
		Device:   testDevice(),
	})
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestSignupDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.signupUser(t, "alice")

	_, err := e.signin.Signup(ctx, "alice", "other@example.com", testPassword)
	require.ErrorIs(t, err, service.ErrUserExists)

	_, err = e.signin.Signup(ctx, "alice2", "alice@example.com", testPassword)
	require.ErrorIs(t, err, service.ErrUserExists)
}

func TestSignupWeakPassword(t *testing.T) {
	e := newEnv(t)

	_, err := e.signin.Signup(context.Background(), "bob", "bob@example.com", "short")
	require.ErrorIs(t, err, service.ErrPasswordTooWeak)
}

func TestSigninWith2FARequiresChallenge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	resp, challenge, err := e.signin.Signin(ctx, service.SigninRequest{
		Login:    "alice",
		Password: testPassword,
		Device:   testDevice(),
	})
	require.NoError(t, err)
	require.Empty(t, resp.AccessToken, "no access token before the second factor")
	require.NotNil(t, challenge)
	require.True(t, challenge.ChallengeRequired)
	require.NotEmpty(t, challenge.ChallengeToken)

	// The challenge token must not open account endpoints.
	claims, err := e.tokens.Keys.Verifier.Verify(challenge.ChallengeToken)
	require.NoError(t, err)
	require.False(t, claims.HasScope(service.ScopeAccount))
	require.True(t, claims.HasScope(service.ScopeChallenge))
}

func TestSigninTrustedDeviceSkipsChallenge(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	// Complete one full challenge, remembering the device.
	chID := e.beginChallenge(t, user)
	first, err := e.challenges.Verify(ctx, chID, e.email.lastCode(t), true, testDevice())
	require.NoError(t, err)
	require.NotEmpty(t, first.DeviceToken)

	// Next signin from the same device skips the second factor.
	resp, challenge, err := e.signin.Signin(ctx, service.SigninRequest{
		Login:       "alice",
		Password:    testPassword,
		DeviceToken: first.DeviceToken,
		Device:      testDevice(),
	})
	require.NoError(t, err)
	require.Nil(t, challenge)
	require.NotEmpty(t, resp.AccessToken)

	claims, err := e.tokens.Keys.Verifier.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims.AMR, "device")
}

func TestSigninDeviceTokenFromDifferentBrowserFallsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.signupUser(t, "alice")
	e.enableEmail2FA(t, user)

	chID := e.beginChallenge(t, user)
	first, err := e.challenges.Verify(ctx, chID, e.email.lastCode(t), true, testDevice())
	require.NoError(t, err)

	// Same token, different device fingerprint: back to the challenge, and
	// the device is burned.
	_, challenge, err := e.signin.Signin(ctx, service.SigninRequest{
		Login:       "alice",
		Password:    testPassword,
		DeviceToken: first.DeviceToken,
		Device:      otherDevice(),
	})
	require.NoError(t, err)
	require.NotNil(t, challenge)

	devices, err := e.devices.List(ctx, user.ID, nil)
	require.NoError(t, err)
	require.Empty(t, devices)
}
