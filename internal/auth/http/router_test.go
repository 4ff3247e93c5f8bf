package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	httpapi "github.com/spendlyzer/auth/internal/auth/http"
	"github.com/spendlyzer/auth/internal/auth/service"
	"github.com/spendlyzer/auth/internal/auth/store/drivers/sqlite"
	"github.com/spendlyzer/auth/pkg/authsdk"
	"github.com/spendlyzer/auth/pkg/cryptox"
	"github.com/spendlyzer/auth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct-horse-battery"

// fakeSender records dispatched codes so tests can read them back.
type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendCode(_ context.Context, _ string, code string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, code)
	return nil
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no code was dispatched")
	return f.sent[len(f.sent)-1]
}

type testServer struct {
	*httptest.Server
	client *authsdk.SDKClient
	email  *fakeSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:   "spendlyzer-auth",
		Audience: []string{"spendlyzer"},
		NumKeys:  1,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := &service.TokenIssuer{Keys: km, Issuer: "spendlyzer-auth", Audience: []string{"spendlyzer"}}
	sessions := &service.SessionService{Store: st, Tokens: tokens, Logger: logger}
	devices := &service.DeviceService{Store: st, Logger: logger}
	email := &fakeSender{}
	sms := &fakeSender{}
	challenges := &service.ChallengeService{
		Store:    st,
		Tokens:   tokens,
		Sessions: sessions,
		Devices:  devices,
		Email:    email,
		SMS:      sms,
		Logger:   logger,
	}

	router := httpapi.NewRouter(km.KeySet, km.Verifier, "spendlyzer-auth", "test", st, logger)
	router.SigninService = &service.SigninService{
		Store:      st,
		Challenges: challenges,
		Sessions:   sessions,
		Devices:    devices,
		Logger:     logger,
	}
	router.ChallengeService = challenges
	router.TwoFactorService = &service.TwoFactorService{
		Store:      st,
		Email:      email,
		SMS:        sms,
		TOTPIssuer: "Spendlyzer",
		Logger:     logger,
	}
	router.SessionService = sessions
	router.DeviceService = devices
	router.UserService = &service.UserService{Store: st}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{
		Server: server,
		client: authsdk.NewSDKClient(server.URL),
		email:  email,
	}
}

func (ts *testServer) signup(t *testing.T, username string) *authsdk.UserResponse {
	t.Helper()
	user, err := ts.client.Signup(context.Background(), authsdk.SignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	})
	require.NoError(t, err)
	return user
}

func (ts *testServer) signin(t *testing.T, username string) *authsdk.Session {
	t.Helper()
	session, pending, err := ts.client.Signin(context.Background(), authsdk.SigninRequest{
		Login:    username,
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Nil(t, pending)
	return session
}

// enableEmail2FA walks enrollment over the wire: enable, read the setup
// code off the fake sender, verify it.
func (ts *testServer) enableEmail2FA(t *testing.T, session *authsdk.Session) {
	t.Helper()
	ctx := context.Background()

	enroll, err := session.EnableTwoFactor(ctx, authsdk.EnableTwoFactorRequest{Method: "email"})
	require.NoError(t, err)
	require.True(t, enroll.SetupSent)

	codes, err := session.VerifySetup(ctx, ts.email.lastCode(t))
	require.NoError(t, err)
	require.Len(t, codes.Codes, 10)
}

func TestSignupAndSignin(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	user := ts.signup(t, "alice")
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)

	session := ts.signin(t, "alice")
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, session.SessionID())

	views, err := session.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.True(t, views[0].IsCurrent)

	settings, err := session.TwoFactorSettings(ctx)
	require.NoError(t, err)
	require.False(t, settings.Enabled)
}

func TestSigninWrongPassword(t *testing.T) {
	ts := newTestServer(t)

	ts.signup(t, "alice")
	_, _, err := ts.client.Signin(context.Background(), authsdk.SigninRequest{
		Login:    "alice",
		Password: "not-the-password",
	})

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeInvalidCredentials, apiErr.Code)
}

func TestChallengeFlowWithRememberDevice(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.signup(t, "alice")
	ts.enableEmail2FA(t, ts.signin(t, "alice"))

	// Password alone is no longer enough.
	session, pending, err := ts.client.Signin(ctx, authsdk.SigninRequest{
		Login:    "alice",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Nil(t, session)
	require.NotNil(t, pending)
	require.Equal(t, "email", pending.Method)

	// A wrong code is rejected without closing the challenge.
	_, err = pending.Verify(ctx, "000000", false)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, authsdk.ErrorCodeInvalidCode, apiErr.Code)

	// The right code promotes the challenge and remembers the device.
	session, err = pending.Verify(ctx, ts.email.lastCode(t), true)
	require.NoError(t, err)
	require.NotEmpty(t, session.DeviceToken())

	devices, err := session.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	// The trusted-device token skips the second factor next time.
	session2, pending2, err := ts.client.Signin(ctx, authsdk.SigninRequest{
		Login:       "alice",
		Password:    testPassword,
		DeviceToken: session.DeviceToken(),
	})
	require.NoError(t, err)
	require.Nil(t, pending2)
	require.NotNil(t, session2)
}

func TestChallengeResend(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.signup(t, "alice")
	ts.enableEmail2FA(t, ts.signin(t, "alice"))

	_, pending, err := ts.client.Signin(ctx, authsdk.SigninRequest{
		Login:    "alice",
		Password: testPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, pending)

	// The initial code was just dispatched, so an immediate resend is
	// refused with the cooldown error.
	_, err = pending.SendCode(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, authsdk.ErrorCodeResendTooSoon, apiErr.Code)
}

func TestChallengeTokenCannotReachAccountRoutes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.signup(t, "alice")
	ts.enableEmail2FA(t, ts.signin(t, "alice"))

	// Go through signin by hand to get at the raw challenge token.
	body, err := json.Marshal(authsdk.SigninRequest{Login: "alice", Password: testPassword})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/v1/auth/signin", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var challenge struct {
		ChallengeToken string `json:"challenge_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&challenge))
	require.NotEmpty(t, challenge.ChallengeToken)

	// The challenge token's single scope must not open account data.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/2fa", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+challenge.ChallengeToken)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestRevokedSessionIsRejectedImmediately(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.signup(t, "alice")
	session := ts.signin(t, "alice")

	result, err := session.RevokeSession(ctx, session.SessionID())
	require.NoError(t, err)
	require.True(t, result.LogoutRequired)

	// The access token is still unexpired but its session row is gone.
	_, err = session.Sessions(ctx)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestSessionSignoutAndRevokeAll(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.signup(t, "alice")
	first := ts.signin(t, "alice")
	second := ts.signin(t, "alice")

	views, err := second.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	revoked, err := second.RevokeAllSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, revoked.RevokedCount)

	_, err = first.Sessions(ctx)
	require.Error(t, err)
}

func TestHealthAndJWKS(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	live, err := ts.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := ts.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)

	jwks, err := ts.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys)
}
